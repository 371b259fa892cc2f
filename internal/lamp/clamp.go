package lamp

// Physical limits of the Luvo downlight and scene table
const (
	MinBrightness = 0
	MaxBrightness = 100

	MinKelvin = 2700
	MaxKelvin = 4000

	MinScene = 0
	MaxScene = 31

	// SceneOff selects the "Off" scene, equivalent to a power-off command
	SceneOff = 0
)

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampBrightness limits a brightness percentage to [0, 100]
func ClampBrightness(b int) int {
	return clamp(b, MinBrightness, MaxBrightness)
}

// ClampColorTemp limits a color temperature to [2700, 4000] K
func ClampColorTemp(k int) int {
	return clamp(k, MinKelvin, MaxKelvin)
}

// ClampScene limits a scene id to [0, 31]
func ClampScene(s int) int {
	return clamp(s, MinScene, MaxScene)
}
