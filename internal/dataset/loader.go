package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"gocv.io/x/gocv"

	"github.com/dudu/eyegaze/internal/augment"
	"github.com/dudu/eyegaze/internal/geometry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrMissingImage is returned when a stem's render cannot be read
var ErrMissingImage = errors.New("dataset: missing render image")

// unityEyesJSON mirrors the fields used from a render's annotation file.
// Coordinates and angles are stored as "(a, b, c)" strings.
type unityEyesJSON struct {
	Interior   []string `json:"interior_margin_2d"`
	Caruncle   []string `json:"caruncle_2d"`
	Iris       []string `json:"iris_2d"`
	HeadPose   string   `json:"head_pose"`
	EyeDetails struct {
		LookVec string `json:"look_vec"`
	} `json:"eye_details"`
}

// ListStems returns the sorted file stems of every .json annotation in dir
func ListStems(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read annotation dir: %w", err)
	}
	var stems []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		stems = append(stems, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(stems)
	return stems, nil
}

// LoadAnnotation reads <stem>.json and the grayscale <stem>.jpg from dir.
// The caller owns the returned image.
func LoadAnnotation(dir, stem string) (*augment.Annotation, error) {
	data, err := os.ReadFile(filepath.Join(dir, stem+".json"))
	if err != nil {
		return nil, err
	}

	img := gocv.IMRead(filepath.Join(dir, stem+".jpg"), gocv.IMReadGrayScale)
	if img.Empty() {
		img.Close()
		return nil, fmt.Errorf("%s: %w", stem, ErrMissingImage)
	}

	a, err := ParseAnnotation(data, img.Rows())
	if err != nil {
		img.Close()
		return nil, fmt.Errorf("%s: %w", stem, err)
	}
	a.Image = img
	return a, nil
}

// ParseAnnotation decodes an annotation file for a render of the given
// height. Render y runs upwards, so contours are flipped to image rows.
func ParseAnnotation(data []byte, height int) (*augment.Annotation, error) {
	var raw unityEyesJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode annotation: %w", err)
	}

	var (
		a   augment.Annotation
		err error
	)
	if a.Interior, err = parseContour(raw.Interior, height); err != nil {
		return nil, fmt.Errorf("interior_margin_2d: %w", err)
	}
	if a.Caruncle, err = parseContour(raw.Caruncle, height); err != nil {
		return nil, fmt.Errorf("caruncle_2d: %w", err)
	}
	if a.Iris, err = parseContour(raw.Iris, height); err != nil {
		return nil, fmt.Errorf("iris_2d: %w", err)
	}

	pose, err := parseTuple(raw.HeadPose, 3)
	if err != nil {
		return nil, fmt.Errorf("head_pose: %w", err)
	}
	a.HeadPose = augment.HeadPose{Pitch: pose[0], Yaw: pose[1], Roll: pose[2]}

	look, err := parseTuple(raw.EyeDetails.LookVec, 3)
	if err != nil {
		return nil, fmt.Errorf("look_vec: %w", err)
	}
	copy(a.LookVec[:], look)

	return &a, nil
}

func parseContour(coords []string, height int) ([]geometry.Point, error) {
	pts := make([]geometry.Point, len(coords))
	for i, c := range coords {
		v, err := parseTuple(c, 2)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		pts[i] = geometry.Pt(v[0], float64(height)-v[1])
	}
	return pts, nil
}

// parseTuple parses "(a, b, ...)" and requires at least n values
func parseTuple(s string, n int) ([]float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	if s == "" {
		return nil, fmt.Errorf("empty tuple")
	}

	parts := strings.Split(s, ",")
	if len(parts) < n {
		return nil, fmt.Errorf("tuple %q has %d values, want at least %d", s, len(parts), n)
	}
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %q: %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}
