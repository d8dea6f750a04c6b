package satellite

// Assumed circular orbit radii, in the same units as GroundRadius
// (thousands of km).
const (
	GroundRadius = 6.37

	orbitGalileo = 23.222
	orbitGPS     = 20.18
	orbitGLONASS = 19.13
	// BeiDou has satellites at several heights; this is the MEO shell.
	orbitBeiDou = 21.528
	// Unknown constellations are placed roughly in the middle of the others.
	orbitDefault = 21.0
)

// OrbitRadius returns the orbit radius assumed for a constellation code.
// ok is false when the code is not recognized and the default was used.
func OrbitRadius(code string) (radius float64, ok bool) {
	switch code {
	case "GA":
		return orbitGalileo, true
	case "GP":
		return orbitGPS, true
	case "GL":
		return orbitGLONASS, true
	case "BD", "GB":
		return orbitBeiDou, true
	default:
		return orbitDefault, false
	}
}

// NetworkName maps a talker code to the constellation's display name.
func NetworkName(code string) string {
	switch code {
	case "GA":
		return "Galileo"
	case "GP":
		return "GPS"
	case "GL":
		return "GLONASS"
	case "BD", "GB":
		return "BeiDou"
	default:
		return "Unknown"
	}
}
