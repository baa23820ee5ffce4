package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/rescuelink/internal/core/domain"
)

// buildSchema creates the read-only GraphQL schema over the registry and locator.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"latitude": &graphql.Field{
				Type: graphql.Float,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(domain.GeoPoint).Lat, nil
				},
			},
			"longitude": &graphql.Field{
				Type: graphql.Float,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(domain.GeoPoint).Lon, nil
				},
			},
		},
	})

	ambulanceType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Ambulance",
		Fields: graphql.Fields{
			"id":            &graphql.Field{Type: graphql.String},
			"name":          &graphql.Field{Type: graphql.String},
			"vehicleNumber": &graphql.Field{Type: graphql.String},
			"driverName":    &graphql.Field{Type: graphql.String},
			"vehicleType":   &graphql.Field{Type: graphql.String},
			"location":      &graphql.Field{Type: geoPointType},
			"active":        &graphql.Field{Type: graphql.Boolean},
			"updatedAt":     &graphql.Field{Type: graphql.DateTime},
		},
	})

	candidateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Candidate",
		Fields: graphql.Fields{
			"ambulance":  &graphql.Field{Type: ambulanceType},
			"distanceKm": &graphql.Field{Type: graphql.Float},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"ambulances": &graphql.Field{
				Type:        graphql.NewList(ambulanceType),
				Description: "List all registered ambulances",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Registry.ListAll(p.Context)
				},
			},
			"ambulance": &graphql.Field{
				Type:        ambulanceType,
				Description: "Get an ambulance by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Registry.Get(p.Context, p.Args["id"].(string))
				},
			},
			"ambulancesNearby": &graphql.Field{
				Type:        graphql.NewList(candidateType),
				Description: "Active ambulances within radiusKm, nearest first",
				Args: graphql.FieldConfigArgument{
					"latitude":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"longitude": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radiusKm":  &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					center := domain.GeoPoint{
						Lat: p.Args["latitude"].(float64),
						Lon: p.Args["longitude"].(float64),
					}
					if err := center.Validate(); err != nil {
						return nil, err
					}
					radiusKm, err := deps.Dispatcher.ResolveRadius(p.Args["radiusKm"].(float64))
					if err != nil {
						return nil, err
					}
					return deps.Locator.Locate(p.Context, center, radiusKm)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
