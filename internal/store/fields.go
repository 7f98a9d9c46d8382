package store

import (
	"reflect"
	"strings"
)

// CanonicalFields returns the canonical field names of a domain type, read
// from its json tags. The contract defines these names once; each backend's
// mapping table must cover exactly this set, which the backends' round-trip
// tests assert.
func CanonicalFields(v interface{}) []string {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	var names []string
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		name := strings.Split(tag, ",")[0]
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}
