package exportformat

import (
	"fmt"
	"html"
	"io"

	"github.com/countygov/terrasync/internal/atomicfile"
	"github.com/countygov/terrasync/internal/types"
)

// KMLHandler emits one <Folder> per layer, containing one <Placemark> per
// feature with its properties rendered as an ExtendedData block.
type KMLHandler struct{}

func (KMLHandler) Generate(layers []Layer, outputPath string, _ map[string]any, _ *types.CountyConfiguration) error {
	return atomicfile.Write(outputPath, func(w io.Writer) error {
		if _, err := io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+"\n"+
			`<kml xmlns="http://www.opengis.net/kml/2.2"><Document>`+"\n"); err != nil {
			return err
		}
		for _, layer := range layers {
			if _, err := fmt.Fprintf(w, "<Folder><name>%s</name>\n", html.EscapeString(layer.Name)); err != nil {
				return err
			}
			for _, f := range layer.Features {
				if err := writePlacemark(w, f); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, "</Folder>\n"); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</Document></kml>\n")
		return err
	})
}

func writePlacemark(w io.Writer, f Feature) error {
	if _, err := io.WriteString(w, "<Placemark><ExtendedData>\n"); err != nil {
		return err
	}
	for k, v := range f.Properties {
		if _, err := fmt.Fprintf(w, `<Data name=%q><value>%s</value></Data>`+"\n", k, html.EscapeString(fmt.Sprintf("%v", v))); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, "</ExtendedData>"); err != nil {
		return err
	}
	if err := writeGeometry(w, f.Geometry); err != nil {
		return err
	}
	_, err := io.WriteString(w, "</Placemark>\n")
	return err
}

func writeGeometry(w io.Writer, geom map[string]any) error {
	kind, _ := geom["type"].(string)
	if kind != "Point" {
		return nil
	}
	coords, _ := geom["coordinates"].([]any)
	if len(coords) != 2 {
		return nil
	}
	_, err := fmt.Fprintf(w, "<Point><coordinates>%v,%v</coordinates></Point>", coords[0], coords[1])
	return err
}

func (KMLHandler) FileExtension() string { return "kml" }
func (KMLHandler) MimeType() string      { return "application/vnd.google-earth.kml+xml" }
