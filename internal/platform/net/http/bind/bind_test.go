package bind

import (
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hitclust/internal/core/clusterer"
	"hitclust/internal/core/hit"
	perr "hitclust/internal/platform/errors"
)

type pixelsIn struct {
	Pixels []hit.Pixel `json:"pixels" validate:"omitempty,dive"`
}

func TestStruct_RejectsOffGridPixels(t *testing.T) {
	ok := pixelsIn{Pixels: []hit.Pixel{{X: 0, Y: 255}, {X: 255, Y: 0}}}
	if err := Struct(ok); err != nil {
		t.Fatalf("grid edge rejected: %v", err)
	}
	for _, p := range []hit.Pixel{{X: 256}, {Y: 300}} {
		err := Struct(pixelsIn{Pixels: []hit.Pixel{{X: 1, Y: 1}, p}})
		if !perr.IsCode(err, perr.ErrorCodeValidation) {
			t.Fatalf("%+v: %v", p, err)
		}
	}
}

func TestStruct_RejectsNonFiniteParams(t *testing.T) {
	for _, p := range []clusterer.Params{
		{Delay: math.Inf(1), Span: 300},
		{Delay: 100, Span: math.NaN()},
		{Delay: -1, Span: 300},
	} {
		if err := Struct(p); !perr.IsCode(err, perr.ErrorCodeValidation) {
			t.Fatalf("%+v: %v", p, err)
		}
	}
	if err := Struct(clusterer.DefaultParams()); err != nil {
		t.Fatalf("defaults: %v", err)
	}
}

func TestParseJSON_UnknownFieldsAndTrailingData(t *testing.T) {
	for _, body := range []string{
		`{"pixels":[{"x":1,"y":2,"value":3,"time":4}],"extra":1}`,
		`{"pixels":[]} {}`,
		``,
	} {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		if _, err := ParseJSON[pixelsIn](r); !perr.IsCode(err, perr.ErrorCodeJSON) {
			t.Fatalf("%q: %v", body, err)
		}
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"pixels":[{"x":1,"y":2,"value":3,"time":4}]}`))
	in, err := ParseJSON[pixelsIn](r)
	if err != nil || len(in.Pixels) != 1 || in.Pixels[0].Y != 2 {
		t.Fatalf("decode: %+v %v", in, err)
	}
}
