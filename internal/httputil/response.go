// Package httputil holds the response helpers shared by the inspection
// handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
)

// WriteJSON writes data as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	writeEncoded(w, "application/json", status, data)
}

// WriteGeoJSON writes a GeoJSON document (a FeatureCollection, Feature or
// Geometry) with 200 OK.
func WriteGeoJSON(w http.ResponseWriter, doc interface{}) {
	writeEncoded(w, "application/geo+json", http.StatusOK, doc)
}

// WriteJSONError writes {"error": msg} with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// WriteLookupError maps err to 404 when it wraps notFound, else 500.
func WriteLookupError(w http.ResponseWriter, err, notFound error) {
	status := http.StatusInternalServerError
	if notFound != nil && errors.Is(err, notFound) {
		status = http.StatusNotFound
	}
	WriteJSONError(w, status, err.Error())
}

func writeEncoded(w http.ResponseWriter, contentType string, status int, data interface{}) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode %s response: %v", contentType, err)
	}
}
