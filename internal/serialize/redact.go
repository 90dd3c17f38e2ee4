package serialize

// Bus-level redaction: for these packet class names, the named fields
// are replaced with "[REDACTED]" anywhere in the serialized tree, even
// when nested inside wrapper objects.
var redactions = map[string][]string{
	"Connect":         {"identityToken"},
	"AuthGrant":       {"authorizationGrant", "serverIdentityToken"},
	"AuthToken":       {"accessToken", "serverAuthorizationGrant"},
	"ServerAuthToken": {"serverAccessToken"},
}

// Redacted is the literal substituted for redacted field values.
const Redacted = "[REDACTED]"

func redactedFields(packetName string) map[string]bool {
	names, ok := redactions[packetName]
	if !ok {
		return nil
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}

// IsRedactedPacket reports whether packetName carries redacted fields.
func IsRedactedPacket(packetName string) bool {
	_, ok := redactions[packetName]
	return ok
}

// IsRedactedField reports whether field is on packetName's redaction
// list. Path expansion uses this to keep masked fields masked.
func IsRedactedField(packetName, field string) bool {
	for _, n := range redactions[packetName] {
		if n == field {
			return true
		}
	}
	return false
}
