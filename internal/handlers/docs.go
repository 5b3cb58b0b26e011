package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"station-review/internal/models"
)

const (
	apiTitle    = "Station Review API"
	docsPath    = "/api/docs"
	openAPIPath = docsPath + "/openapi.json"
)

// apiTags are the operation groups in display order
var apiTags = []map[string]string{
	{"name": "review", "description": "Grouped review of a station's RINEX files"},
	{"name": "repair", "description": "Repair actions on station information intervals"},
	{"name": "station-info", "description": "station.info import and completion plot"},
	{"name": "operations", "description": "Health and metrics"},
}

func tagNames() []string {
	names := make([]string, len(apiTags))
	for i, t := range apiTags {
		names[i] = t["name"]
	}
	return names
}

func tagFor(path string) string {
	switch {
	case strings.Contains(path, "/subgroups/"):
		return "repair"
	case strings.Contains(path, "/review"):
		return "review"
	case strings.HasPrefix(path, "/api/stations/"):
		return "station-info"
	default:
		return "operations"
	}
}

var stationParam = map[string]interface{}{
	"name":        "station",
	"in":          "path",
	"description": "Station as network.station, e.g. igs.braz",
	"required":    true,
	"schema":      map[string]string{"type": "string"},
}

func jsonResponse(description string) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]string{"type": "object"},
			},
		},
	}
}

func errorResponses(codes ...string) map[string]interface{} {
	descriptions := map[string]string{
		"400": "Invalid input",
		"404": "Unknown review session or subgroup",
		"409": "Snapshot changed since the subgroup id was read",
		"422": "Repair rejected by the metadata service",
		"502": "Metadata service unavailable and no snapshot loaded",
	}
	out := map[string]interface{}{}
	for _, code := range codes {
		out[code] = map[string]interface{}{
			"description": descriptions[code],
			"content": map[string]interface{}{
				"application/json": map[string]interface{}{
					"schema": map[string]interface{}{"$ref": "#/components/schemas/Error"},
				},
			},
		}
	}
	return out
}

func withResponses(ok map[string]interface{}, errs map[string]interface{}) map[string]interface{} {
	errs["200"] = ok
	return errs
}

func filterParams() []map[string]interface{} {
	names := []string{
		models.FieldReceiverCode, models.FieldReceiverSerial, models.FieldReceiverFirmware,
		models.FieldAntennaCode, models.FieldAntennaSerial, models.FieldAntennaHeight,
		models.FieldAntennaNorth, models.FieldAntennaEast, models.FieldHeightCode,
		models.FieldRadomeCode, "filename", "match_mode", "date_from", "date_to",
		"observation_year", "observation_year_op", "observation_doy", "observation_doy_op",
		"observation_f_year", "observation_f_year_op", "completion", "completion_op",
		"gap_types", "mismatch_only",
	}

	params := []map[string]interface{}{stationParam}
	for _, name := range names {
		params = append(params, map[string]interface{}{
			"name":     name,
			"in":       "query",
			"required": false,
			"schema":   map[string]string{"type": "string"},
		})
	}
	return params
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the Station Review API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       apiTitle,
			"description": "Review of a GNSS station's RINEX files against its station information intervals",
			"version":     "1.0.0",
		},
		"tags": apiTags,
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/stations/{station}/review": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Current review view",
					"description": "Returns the current page of grouped RINEX rows. The first request for a station fetches a snapshot.",
					"parameters":  []map[string]interface{}{stationParam},
					"responses":   withResponses(jsonResponse("Review view"), errorResponses("400", "502")),
				},
			},
			"/api/stations/{station}/review/refresh": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":    "Refetch the snapshot",
					"parameters": []map[string]interface{}{stationParam},
					"responses":  withResponses(jsonResponse("Review view, with error set when the fetch failed"), errorResponses("400", "502")),
				},
			},
			"/api/stations/{station}/review/filter": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Apply a filter",
					"description": "All given criteria must match. Invalid input is rejected and nothing is fetched.",
					"parameters":  filterParams(),
					"responses":   withResponses(jsonResponse("Review view on page 1"), errorResponses("400", "502")),
				},
			},
			"/api/stations/{station}/review/page/{page}": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Change page",
					"description": "A page outside the result leaves the view unchanged and returns changed=false.",
					"parameters": []map[string]interface{}{
						stationParam,
						{
							"name":     "page",
							"in":       "path",
							"required": true,
							"schema":   map[string]string{"type": "integer"},
						},
					},
					"responses": withResponses(jsonResponse("Page change result"), errorResponses("400", "502")),
				},
			},
			"/api/stations/{station}/review/subgroups/{subgroup}/{action}": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Run a repair action",
					"description": "extend-up, extend-down or create-from-rinex for a subgroup of the current snapshot",
					"parameters": []map[string]interface{}{
						stationParam,
						{
							"name":     "subgroup",
							"in":       "path",
							"required": true,
							"schema":   map[string]string{"type": "string", "example": "2.1"},
						},
						{
							"name":     "action",
							"in":       "path",
							"required": true,
							"schema": map[string]interface{}{
								"type": "string",
								"enum": []string{"extend-up", "extend-down", "create-from-rinex"},
							},
						},
						{
							"name":        "sequence",
							"in":          "query",
							"description": "Snapshot sequence the subgroup id was read from",
							"required":    false,
							"schema":      map[string]string{"type": "integer"},
						},
					},
					"responses": withResponses(jsonResponse("Action result and refreshed view"), errorResponses("400", "404", "409", "422", "502")),
				},
			},
			"/api/stations/{station}/station-info/import": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Import station.info",
					"description": "Multipart upload with file, optional selected_record_keys (JSON) and preview=true to only parse",
					"parameters":  []map[string]interface{}{stationParam},
					"responses": withResponses(jsonResponse("Preview or import result"), map[string]interface{}{
						"207": jsonResponse("Some records failed"),
						"400": errorResponses("400")["400"],
					}),
				},
			},
			"/api/stations/{station}/completion-plot": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "Completion plot",
					"parameters": []map[string]interface{}{stationParam},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Image as served by the metadata service",
							"content": map[string]interface{}{
								"image/png": map[string]interface{}{
									"schema": map[string]string{"type": "string", "format": "binary"},
								},
							},
						},
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":   "Health check",
					"responses": map[string]interface{}{"200": jsonResponse("API is healthy"), "503": jsonResponse("Snapshot source unhealthy")},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Prometheus metrics",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"Error": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"error":   map[string]string{"type": "string"},
						"message": map[string]string{"type": "string"},
						"code":    map[string]string{"type": "integer"},
						"fields": map[string]interface{}{
							"type": "object",
							"additionalProperties": map[string]interface{}{
								"type":  "array",
								"items": map[string]string{"type": "string"},
							},
						},
					},
				},
			},
		},
	}

	for path, item := range spec["paths"].(map[string]interface{}) {
		for _, op := range item.(map[string]interface{}) {
			op.(map[string]interface{})["tags"] = []string{tagFor(path)}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
