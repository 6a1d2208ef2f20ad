package endpoint

// canonicalPaths labels the message paths the engine recognizes with
// stable field names. A discovered path with no entry here is dropped
// at registration time. FHIR and HL7 notations share one table so the
// same name lines up across protocols (PID-8 and gender are both
// "gender").
var canonicalPaths = map[string]string{
	"identifier[0].value": "mpi",
	"name[0].text":        "fullname",
	"name[0].given":       "given name",
	"name[0].family[0]":   "family name",
	"gender":              "gender",
	"birthDate":           "birth date",
	"telecom[0].value":    "phone number",
	"address[0].text":     "address",

	"PID-3":   "mpi",
	"PID-5":   "fullname",
	"PID-5.1": "family name",
	"PID-5.2": "given name",
	"PID-7":   "birth date",
	"PID-8":   "gender",
	"PID-11":  "address",
	"PID-13":  "phone number",
}

// CanonicalName returns the stable field name for a message path.
func CanonicalName(path string) (string, bool) {
	name, ok := canonicalPaths[path]
	return name, ok
}
