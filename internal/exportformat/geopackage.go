package exportformat

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/countygov/terrasync/internal/types"
)

// GeoPackageHandler writes a single SQLite container with one table per
// layer, using the pure-Go modernc.org/sqlite driver. Columns hold the
// feature's geometry (as GeoJSON text, a minimum-viable stand-in for the
// binary GeoPackage geometry encoding) and its properties (as JSON text).
// The output is always a well-formed SQLite file, built at a temp path and
// renamed into place so a failure never leaves a partial container visible.
type GeoPackageHandler struct{}

func (GeoPackageHandler) Generate(layers []Layer, outputPath string, _ map[string]any, _ *types.CountyConfiguration) error {
	tempPath := outputPath + ".tmp"
	_ = os.Remove(tempPath)

	db, err := sql.Open("sqlite", tempPath)
	if err != nil {
		return fmt.Errorf("geopackage: open %q: %w", tempPath, err)
	}
	defer func() {
		db.Close()
		os.Remove(tempPath)
	}()

	if _, err := db.Exec(`CREATE TABLE gpkg_contents (
		table_name TEXT PRIMARY KEY,
		data_type TEXT NOT NULL,
		identifier TEXT
	)`); err != nil {
		return fmt.Errorf("geopackage: create gpkg_contents: %w", err)
	}

	for _, layer := range layers {
		table := sanitizeTableName(layer.Name)
		if _, err := db.Exec(fmt.Sprintf(
			`CREATE TABLE %q (fid INTEGER PRIMARY KEY, geometry TEXT, properties TEXT)`, table)); err != nil {
			return fmt.Errorf("geopackage: create table %q: %w", table, err)
		}
		if _, err := db.Exec(
			`INSERT INTO gpkg_contents (table_name, data_type, identifier) VALUES (?, 'features', ?)`,
			table, layer.Name); err != nil {
			return fmt.Errorf("geopackage: register layer %q: %w", layer.Name, err)
		}

		stmt, err := db.Prepare(fmt.Sprintf(`INSERT INTO %q (geometry, properties) VALUES (?, ?)`, table))
		if err != nil {
			return fmt.Errorf("geopackage: prepare insert for %q: %w", table, err)
		}
		for _, f := range layer.Features {
			geomJSON, _ := json.Marshal(f.Geometry)
			propsJSON, _ := json.Marshal(f.Properties)
			if _, err := stmt.Exec(string(geomJSON), string(propsJSON)); err != nil {
				stmt.Close()
				return fmt.Errorf("geopackage: insert feature into %q: %w", table, err)
			}
		}
		stmt.Close()
	}

	if err := db.Close(); err != nil {
		return fmt.Errorf("geopackage: close %q: %w", tempPath, err)
	}

	return os.Rename(tempPath, outputPath)
}

func sanitizeTableName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
		} else {
			out = append(out, '_')
		}
	}
	return string(out)
}

func (GeoPackageHandler) FileExtension() string { return "gpkg" }
func (GeoPackageHandler) MimeType() string      { return "application/geopackage+sqlite3" }
