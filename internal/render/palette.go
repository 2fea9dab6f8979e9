package render

const (
	Background = "#0a0a0a"
	Foreground = "#e0e0e0"
	Muted      = "#666666"
	Accent     = "#00ffff"
	Highlight  = "#ffff00"
	Warning    = "#ff8800"
	Danger     = "#ff4444"
	Success    = "#00ff88"
)

// ClassColors colors cluster and class labels in order.
var ClassColors = []string{"#ff00ff", "#00ccff", "#ffcc00", "#00ff88", "#ff4444", "#8888ff"}

func ClassColor(i int) string {
	if i < 0 {
		return Muted
	}
	return ClassColors[i%len(ClassColors)]
}
