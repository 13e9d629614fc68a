package testutil

import (
	"bytes"
	"compress/gzip"
)

// SampleGeoJSON holds three Masvingo districts, one of them an "Urban"
// district that the default loader options filter out.
const SampleGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"NAME_2": "Bikita"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
    {"type": "Feature", "properties": {"NAME_2": "Masvingo Urban"},
     "geometry": {"type": "Polygon", "coordinates": [[[1,0],[2,0],[2,1],[1,1],[1,0]]]}},
    {"type": "Feature", "properties": {"NAME_2": "Zaka"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,1],[1,1],[1,2],[0,2],[0,1]]]}}
  ]
}`

// SampleMapConfigYAML configures products for the SampleGeoJSON districts.
const SampleMapConfigYAML = `
product_codes:
  1: Baobab
  2: Marula
product_colors:
  1: "#8b4513"
  2: "#228b22"
district_products:
  Bikita: [1, 2]
  Masvingo Urban: [2]
district_groups:
  set1: [Bikita]
group_colors:
  set1: "#ffe4b5"
district_acronyms:
  Bikita: BKT
`

// Gzip compresses data.
func Gzip(data []byte) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write(data)
	zw.Close()
	return buf.Bytes()
}
