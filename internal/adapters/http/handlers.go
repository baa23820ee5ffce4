package http

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/rescuelink/internal/core/domain"
)

// emergencyCallRequest is the body of POST /emergency/call.
type emergencyCallRequest struct {
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	CallbackPhone string   `json:"callbackPhone"`
	RadiusKm      float64  `json:"radiusKm"`
}

// locationRequest is the body of PUT /emergency/ambulances/:id/location.
type locationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// requirePoint turns a pair of optional coordinates into a GeoPoint or a
// ValidationError naming the missing ones.
func requirePoint(lat, lon *float64) (*domain.GeoPoint, *domain.ValidationError) {
	var fields []domain.FieldError
	if lat == nil {
		fields = append(fields, domain.FieldError{Field: "latitude", Message: "is required"})
	}
	if lon == nil {
		fields = append(fields, domain.FieldError{Field: "longitude", Message: "is required"})
	}
	if len(fields) > 0 {
		return nil, &domain.ValidationError{Fields: fields}
	}
	return &domain.GeoPoint{Lat: *lat, Lon: *lon}, nil
}

// RegisterAmbulanceHandler registers an ambulance, or refreshes it when the
// vehicle number is already known.
func RegisterAmbulanceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req domain.RegisterAmbulanceRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		amb, created, err := deps.Registry.Register(c.UserContext(), req)
		if err != nil {
			return errFromService(c, err)
		}

		status := fiber.StatusOK
		if created {
			status = fiber.StatusCreated
			c.Location("/emergency/ambulances/" + amb.ID)
		}
		LoggerFromCtx(c.UserContext()).Info("ambulance registered",
			"ambulance_id", amb.ID, "vehicle_number", amb.VehicleNumber, "created", created)
		return c.Status(status).JSON(amb)
	}
}

// ListAmbulancesHandler returns every registered ambulance.
func ListAmbulancesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ambulances, err := deps.Registry.ListAll(c.UserContext())
		if err != nil {
			return errFromService(c, err)
		}

		offset, limit := pageParams(c)
		page, pg := paginate(ambulances, offset, limit)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// NearbyAmbulancesHandler runs the locator without notifying anyone.
func NearbyAmbulancesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(c.Query("lat")), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(c.Query("lon")), 64)
		if latErr != nil || lonErr != nil {
			return errBadRequest(c, "lat and lon are required numeric query parameters")
		}
		center := domain.GeoPoint{Lat: lat, Lon: lon}
		if err := center.Validate(); err != nil {
			return errFromService(c, err)
		}

		var requested float64
		if raw := strings.TrimSpace(c.Query("radius_km")); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return errValidation(c, domain.NewValidationError("radiusKm", "must be a number"))
			}
			requested = v
		}
		radiusKm, err := deps.Dispatcher.ResolveRadius(requested)
		if err != nil {
			return errFromService(c, err)
		}

		candidates, err := deps.Locator.Locate(c.UserContext(), center, radiusKm)
		if err != nil {
			return errFromService(c, err)
		}

		return c.JSON(fiber.Map{
			"center":     center,
			"radiusKm":   radiusKm,
			"candidates": candidates,
		})
	}
}

// GetAmbulanceHandler returns a single ambulance.
func GetAmbulanceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		amb, err := deps.Registry.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(amb)
	}
}

// UpdateLocationHandler stores a position report sent over HTTP.
func UpdateLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req locationRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		loc, verr := requirePoint(req.Latitude, req.Longitude)
		if verr != nil {
			return errValidation(c, verr)
		}

		update := &domain.LocationUpdate{AmbulanceID: c.Params("id"), Location: *loc}
		if err := deps.Registry.ReportLocation(c.UserContext(), update); err != nil {
			return errFromService(c, err)
		}
		return c.JSON(update)
	}
}

// DeactivateAmbulanceHandler takes an ambulance out of dispatch rotation.
func DeactivateAmbulanceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Registry.Deactivate(c.UserContext(), c.Params("id")); err != nil {
			return errFromService(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// EmergencyCallHandler dispatches the nearest ambulances to the caller.
// Zero candidates is still a 200 with state no_candidates.
func EmergencyCallHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req emergencyCallRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		loc, verr := requirePoint(req.Latitude, req.Longitude)
		if verr != nil {
			return errValidation(c, verr)
		}

		result, err := deps.Dispatcher.Dispatch(c.UserContext(), domain.EmergencyRequest{
			RequesterLocation: loc,
			CallbackPhone:     req.CallbackPhone,
			RadiusKm:          req.RadiusKm,
		})
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(result)
	}
}

// GetDispatchHandler returns the audit record of a past dispatch.
func GetDispatchHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		result, err := deps.Dispatcher.GetDispatch(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(result)
	}
}
