package handler

import (
	"net/http"

	"objektbetreuer-backend/bootstrap"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// Handler is the serverless entry point. All requests are rewritten here.
// Until the app starts, callers get the API's unavailable error.
func Handler(w http.ResponseWriter, r *http.Request) {
	app, err := bootstrap.App()
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"error","error":{"message":"The service is temporarily unavailable. Please try again.","statusCode":503,"details":{"code":"unavailable"}}}`))
		return
	}
	r.RequestURI = r.URL.String()
	adaptor.FiberApp(app)(w, r)
}
