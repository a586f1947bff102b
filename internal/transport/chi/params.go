package chi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/kailas-cloud/dicomgw/internal/domain"
)

var pathParamOptions = runtime.BindStyledParameterOptions{
	ParamLocation: runtime.ParamLocationPath,
	Explode:       false,
	Required:      true,
}

// pathUID binds a path parameter and checks it is a usable UID.
func pathUID(r *http.Request, name string) (string, error) {
	var uid string
	if err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &uid, pathParamOptions); err != nil {
		return "", fmt.Errorf("%w: %s: %w", errBadParameter, name, err)
	}
	if err := domain.ValidateUID(uid); err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return uid, nil
}

// pathFrame binds the frame number. Frames are numbered from 1.
func pathFrame(r *http.Request) (int, error) {
	var frame int
	if err := runtime.BindStyledParameterWithOptions("simple", "frame", chi.URLParam(r, "frame"), &frame, pathParamOptions); err != nil {
		return 0, fmt.Errorf("%w: frame: %w", errBadParameter, err)
	}
	if frame < 1 {
		return 0, fmt.Errorf("%w: frame %d", errBadParameter, frame)
	}
	return frame, nil
}

// queryUID binds a required query parameter and checks it is a usable UID.
func queryUID(r *http.Request, name string) (string, error) {
	var uid string
	if err := runtime.BindQueryParameter("form", true, true, name, r.URL.Query(), &uid); err != nil {
		return "", fmt.Errorf("%w: %s: %w", errBadParameter, name, err)
	}
	if err := domain.ValidateUID(uid); err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return uid, nil
}
