package exportformat

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/countygov/terrasync/internal/atomicfile"
	"github.com/countygov/terrasync/internal/types"
)

// ShapefileHandler emits one zip archive containing a .shp/.shx/.dbf/.prj
// quadruplet per layer. Geometries are written as shape type 1 (Point); this
// is sufficient for the point and centroid layers this platform's counties
// expose and keeps the binary format's header/record structure correct
// rather than a placeholder blob.
type ShapefileHandler struct{}

const shpPointType = 1

func (ShapefileHandler) Generate(layers []Layer, outputPath string, _ map[string]any, county *types.CountyConfiguration) error {
	prjWKT := defaultPrjWKT
	if county != nil && county.DefaultProjection != "" {
		prjWKT = wktForProjection(county.DefaultProjection)
	}

	return atomicfile.Write(outputPath, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		for _, layer := range layers {
			shp, shx := buildShapeFiles(layer)
			dbf := buildDBF(layer)

			if err := writeZipEntry(zw, layer.Name+".shp", shp); err != nil {
				return err
			}
			if err := writeZipEntry(zw, layer.Name+".shx", shx); err != nil {
				return err
			}
			if err := writeZipEntry(zw, layer.Name+".dbf", dbf); err != nil {
				return err
			}
			if err := writeZipEntry(zw, layer.Name+".prj", []byte(prjWKT)); err != nil {
				return err
			}
		}
		return zw.Close()
	})
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	f, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	return err
}

// buildShapeFiles encodes layer's point features as a minimal .shp/.shx pair
// following the ESRI shapefile binary spec's header and record layout.
func buildShapeFiles(layer Layer) (shp, shx []byte) {
	var shpBuf, shxBuf bytes.Buffer

	records := make([][]byte, 0, len(layer.Features))
	minX, minY, maxX, maxY := 0.0, 0.0, 0.0, 0.0
	for i, f := range layer.Features {
		x, y := pointXY(f.Geometry)
		if i == 0 {
			minX, maxX, minY, maxY = x, x, y, y
		}
		minX, maxX = minF(minX, x), maxF(maxX, x)
		minY, maxY = minF(minY, y), maxF(maxY, y)

		var rec bytes.Buffer
		binary.Write(&rec, binary.LittleEndian, int32(shpPointType))
		binary.Write(&rec, binary.LittleEndian, x)
		binary.Write(&rec, binary.LittleEndian, y)
		records = append(records, rec.Bytes())
	}

	contentLenWords := 0
	for _, r := range records {
		contentLenWords += 4 + len(r)/2
	}
	fileLenWords := 50 + contentLenWords

	writeShpHeader(&shpBuf, fileLenWords, shpPointType, minX, minY, maxX, maxY)
	shxFileLenWords := 50 + 4*len(records)
	writeShpHeader(&shxBuf, shxFileLenWords, shpPointType, minX, minY, maxX, maxY)

	offset := 50
	for i, r := range records {
		contentWords := len(r) / 2
		binary.Write(&shpBuf, binary.BigEndian, int32(i+1))
		binary.Write(&shpBuf, binary.BigEndian, int32(contentWords))
		shpBuf.Write(r)

		binary.Write(&shxBuf, binary.BigEndian, int32(offset))
		binary.Write(&shxBuf, binary.BigEndian, int32(contentWords))
		offset += 4 + contentWords
	}

	return shpBuf.Bytes(), shxBuf.Bytes()
}

func writeShpHeader(buf *bytes.Buffer, fileLenWords, shapeType int, minX, minY, maxX, maxY float64) {
	binary.Write(buf, binary.BigEndian, int32(9994)) // file code
	for i := 0; i < 5; i++ {
		binary.Write(buf, binary.BigEndian, int32(0)) // unused
	}
	binary.Write(buf, binary.BigEndian, int32(fileLenWords))
	binary.Write(buf, binary.LittleEndian, int32(1000)) // version
	binary.Write(buf, binary.LittleEndian, int32(shapeType))
	binary.Write(buf, binary.LittleEndian, minX)
	binary.Write(buf, binary.LittleEndian, minY)
	binary.Write(buf, binary.LittleEndian, maxX)
	binary.Write(buf, binary.LittleEndian, maxY)
	for i := 0; i < 4; i++ {
		binary.Write(buf, binary.LittleEndian, float64(0)) // Zmin/Zmax/Mmin/Mmax
	}
}

// buildDBF writes a minimal valid dBase III attribute table: one "NAME"
// character field, one row per feature holding the layer name.
func buildDBF(layer Layer) []byte {
	var buf bytes.Buffer

	fieldName := "NAME"
	fieldLen := byte(64)
	numRecords := int32(len(layer.Features))
	headerLen := int16(32 + 32 + 1) // header + one field descriptor + terminator
	recordLen := int16(1 + int(fieldLen))

	buf.WriteByte(0x03) // dBase III, no memo
	buf.WriteByte(26)   // year (since 1900)
	buf.WriteByte(1)
	buf.WriteByte(1)
	binary.Write(&buf, binary.LittleEndian, numRecords)
	binary.Write(&buf, binary.LittleEndian, headerLen)
	binary.Write(&buf, binary.LittleEndian, recordLen)
	buf.Write(make([]byte, 20)) // reserved

	var nameField [11]byte
	copy(nameField[:], fieldName)
	buf.Write(nameField[:])
	buf.WriteByte('C') // character type
	buf.Write(make([]byte, 4))
	buf.WriteByte(fieldLen)
	buf.WriteByte(0)
	buf.Write(make([]byte, 14))

	buf.WriteByte(0x0D) // header terminator

	for range layer.Features {
		buf.WriteByte(' ') // not deleted
		field := make([]byte, fieldLen)
		copy(field, layer.Name)
		for i := len(layer.Name); i < len(field); i++ {
			field[i] = ' '
		}
		buf.Write(field)
	}
	buf.WriteByte(0x1A) // EOF marker

	return buf.Bytes()
}

func pointXY(geom map[string]any) (float64, float64) {
	if geom == nil {
		return 0, 0
	}
	coords, _ := geom["coordinates"].([]any)
	if len(coords) < 2 {
		return 0, 0
	}
	x, _ := toFloat(coords[0])
	y, _ := toFloat(coords[1])
	return x, y
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

const defaultPrjWKT = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]]`

func wktForProjection(code string) string {
	if code == "EPSG:4326" {
		return defaultPrjWKT
	}
	return fmt.Sprintf(`PROJCS["%s",%s]`, code, defaultPrjWKT)
}

func (ShapefileHandler) FileExtension() string { return "zip" }
func (ShapefileHandler) MimeType() string      { return "application/zip" }
