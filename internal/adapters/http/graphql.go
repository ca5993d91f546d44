package http

import (
	"fmt"
	"sort"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/amchercashin/VeloTrek/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
// Mutations stay on the REST surface; GraphQL is read-only.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	bboxType := graphql.NewObject(graphql.ObjectConfig{
		Name: "BBox",
		Fields: graphql.Fields{
			"min_lat": &graphql.Field{Type: graphql.Float},
			"max_lat": &graphql.Field{Type: graphql.Float},
			"min_lon": &graphql.Field{Type: graphql.Float},
			"max_lon": &graphql.Field{Type: graphql.Float},
		},
	})

	statType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Stat",
		Fields: graphql.Fields{
			"key":   &graphql.Field{Type: graphql.String},
			"value": &graphql.Field{Type: graphql.Float},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Route",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"name":        &graphql.Field{Type: graphql.String},
			"description": &graphql.Field{Type: graphql.String},
			"created_at":  &graphql.Field{Type: graphql.DateTime},
			"bbox": &graphql.Field{
				Type: bboxType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					rt, ok := p.Source.(domain.Route)
					if !ok {
						return nil, nil
					}
					return map[string]interface{}{
						"min_lat": rt.BBox.MinLat,
						"max_lat": rt.BBox.MaxLat,
						"min_lon": rt.BBox.MinLon,
						"max_lon": rt.BBox.MaxLon,
					}, nil
				},
			},
			"point_count": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					rt, ok := p.Source.(domain.Route)
					if !ok {
						return 0, nil
					}
					return rt.PointCount(), nil
				},
			},
			"stats": &graphql.Field{
				Type: graphql.NewList(statType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					rt, ok := p.Source.(domain.Route)
					if !ok {
						return nil, nil
					}
					keys := make([]string, 0, len(rt.Stats))
					for k := range rt.Stats {
						keys = append(keys, k)
					}
					sort.Strings(keys)
					out := make([]map[string]interface{}, 0, len(keys))
					for _, k := range keys {
						out = append(out, map[string]interface{}{"key": k, "value": rt.Stats[k]})
					}
					return out, nil
				},
			},
		},
	})

	estimateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TileEstimate",
		Fields: graphql.Fields{
			"tile_count":     &graphql.Field{Type: graphql.Int},
			"estimated_size": &graphql.Field{Type: graphql.Float},
			"estimated_text": &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"route": &graphql.Field{
				Type: routeType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["id"].(string)
					route, err := deps.Tracks.GetByID(p.Context, id)
					if err != nil {
						return nil, err
					}
					return *route, nil
				},
			},
			"routes": &graphql.Field{
				Type: graphql.NewList(routeType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Tracks.List(p.Context)
				},
			},
			"tileEstimate": &graphql.Field{
				Type: estimateType,
				Args: graphql.FieldConfigArgument{
					"routeId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"zoomMin": &graphql.ArgumentConfig{Type: graphql.Int},
					"zoomMax": &graphql.ArgumentConfig{Type: graphql.Int},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["routeId"].(string)
					zoomMin := deps.ZoomMin
					zoomMax := deps.ZoomMax
					if v, ok := p.Args["zoomMin"].(int); ok {
						zoomMin = v
					}
					if v, ok := p.Args["zoomMax"].(int); ok {
						zoomMax = v
					}
					if zoomMin > zoomMax {
						return nil, fmt.Errorf("zoomMin must not exceed zoomMax")
					}

					route, err := deps.Tracks.GetByID(p.Context, id)
					if err != nil {
						return nil, err
					}

					set := deps.Tiles.TilesForRoute(route, zoomMin, zoomMax)
					size := deps.Tiles.EstimateSize(len(set))
					return map[string]interface{}{
						"tile_count":     len(set),
						"estimated_size": float64(size),
						"estimated_text": deps.Tiles.FormatSize(size),
					}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
}

// GraphQLHandler serves POST /graphql.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		panic(fmt.Sprintf("graphql schema: %v", err))
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
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
