package app

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Appointments
	r.HandleFunc("/api/appointment", deps.SchedulingHandler.Book).Methods("POST")
	r.HandleFunc("/api/appointment", deps.SchedulingHandler.List).Methods("GET")
	r.HandleFunc("/api/appointment/{email}", deps.SchedulingHandler.Get).Methods("GET")
	r.HandleFunc("/api/appointment/{email}", deps.SchedulingHandler.Reschedule).Methods("PUT")
	r.HandleFunc("/api/appointment/{email}", deps.SchedulingHandler.Cancel).Methods("DELETE")

	// Availability
	r.HandleFunc("/api/availability", deps.SchedulingHandler.Availability).Methods("GET")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")
}
