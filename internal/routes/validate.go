package routes

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"routesim/server/internal/geo"
)

var validate = validator.New()

func (r CreateRequest) Validate() (geo.Polyline, error) {
	if err := validate.Struct(r); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, describe(err))
	}
	if strings.TrimSpace(r.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	return r.Geometry.polyline()
}

func (r UpdateRequest) Validate() (geo.Polyline, error) {
	if err := validate.Struct(r); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, describe(err))
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return nil, fmt.Errorf("%w: name must not be blank", ErrInvalid)
	}
	if r.Geometry == nil {
		return nil, nil
	}
	if err := validate.Struct(r.Geometry); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, describe(err))
	}
	return r.Geometry.polyline()
}

func (g Geometry) polyline() (geo.Polyline, error) {
	line, err := geo.FromPairs(g.Coordinates)
	if err == nil {
		err = line.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return line, nil
}

// describe flattens validator errors into "field rule" pairs.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
