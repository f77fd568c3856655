package archiver

import "strings"

// DefaultBasePath prefixes every object key written by the scraper.
const DefaultBasePath = "k8s_data"

// ObjectKey returns <base>/<alias>/<YYYY_MM_DD>/<HH>/<metric>.json.
func ObjectKey(basePath, alias string, w Window, metric string) string {
	return strings.TrimSuffix(basePath, "/") + "/" + alias + "/" + w.Path + "/" + metric + ".json"
}
