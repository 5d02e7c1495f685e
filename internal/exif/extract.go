package exif

import (
	"fmt"
	"io"

	"github.com/rwcarlsen/goexif/exif"
)

// ExtractFromImage reads EXIF metadata out of image bytes for uploads
// whose client supplied none. The result is a RawExif so that it flows
// through the exact same Normalize path as client-submitted data.
func ExtractFromImage(r io.Reader) (*RawExif, error) {
	x, err := exif.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode exif: %w", err)
	}

	raw := &RawExif{}

	if dt, err := x.DateTime(); err == nil {
		raw.DateTime = dt.Format("2006:01:02 15:04:05")
	}

	if lat, lng, err := x.LatLong(); err == nil {
		gps := &RawGPS{Latitude: lat, Longitude: lng}
		if alt, err := x.Get(exif.GPSAltitude); err == nil {
			if rat, err := alt.Rat(0); err == nil && rat.Denom().Int64() != 0 {
				gps.Altitude = float64(rat.Num().Int64()) / float64(rat.Denom().Int64())
			}
		}
		raw.GPS = gps
	}

	camera := &RawCameraInfo{}
	if tag, err := x.Get(exif.Make); err == nil {
		if s, err := tag.StringVal(); err == nil {
			camera.Make = s
		}
	}
	if tag, err := x.Get(exif.Model); err == nil {
		if s, err := tag.StringVal(); err == nil {
			camera.Model = s
		}
	}
	if tag, err := x.Get(exif.LensModel); err == nil {
		if s, err := tag.StringVal(); err == nil {
			camera.Lens = s
		}
	}
	if camera.Make != nil || camera.Model != nil || camera.Lens != nil {
		raw.CameraInfo = camera
	}

	img := &RawImageInfo{}
	if tag, err := x.Get(exif.PixelXDimension); err == nil {
		if w, err := tag.Int(0); err == nil {
			img.Width = w
		}
	}
	if tag, err := x.Get(exif.PixelYDimension); err == nil {
		if h, err := tag.Int(0); err == nil {
			img.Height = h
		}
	}
	if tag, err := x.Get(exif.Orientation); err == nil {
		if o, err := tag.Int(0); err == nil {
			img.Orientation = o
		}
	}
	if img.Width != nil || img.Height != nil || img.Orientation != nil {
		raw.ImageInfo = img
	}

	return raw, nil
}
