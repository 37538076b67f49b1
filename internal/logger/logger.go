package logger

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
)

var (
	gray    = color.New(color.FgHiBlack).SprintFunc()
	blue    = color.New(color.FgBlue).SprintFunc()
	green   = color.New(color.FgGreen).SprintFunc()
	yellow  = color.New(color.FgYellow).SprintFunc()
	red     = color.New(color.FgRed).SprintFunc()
	cyan    = color.New(color.FgCyan).SprintFunc()
	magenta = color.New(color.FgMagenta).SprintFunc()
	white   = color.New(color.FgWhite).SprintFunc()
)

var debugEnabled = os.Getenv("APP_DEBUG") != ""

func stamp() string {
	return gray("[" + time.Now().Format("15:04:05") + "]")
}

// Info log une information générale (bleu)
func Info(message string, args ...interface{}) {
	fmt.Printf("%s %s\n", stamp(), blue(fmt.Sprintf(message, args...)))
}

// Success log un succès (vert)
func Success(message string, args ...interface{}) {
	fmt.Printf("%s %s\n", stamp(), green("✓ "+fmt.Sprintf(message, args...)))
}

// Warning log un avertissement (jaune)
func Warning(message string, args ...interface{}) {
	fmt.Printf("%s %s\n", stamp(), yellow("⚠ "+fmt.Sprintf(message, args...)))
}

// Error log une erreur (rouge)
func Error(message string, args ...interface{}) {
	fmt.Printf("%s %s\n", stamp(), red("✗ "+fmt.Sprintf(message, args...)))
}

// Request log une requête HTTP avec durée (couleur selon statut)
func Request(method, path string, statusCode int, duration time.Duration) {
	var status string
	switch {
	case statusCode >= 200 && statusCode < 300:
		status = green(fmt.Sprintf("[%d]", statusCode))
	case statusCode >= 300 && statusCode < 400:
		status = cyan(fmt.Sprintf("[%d]", statusCode))
	case statusCode >= 400 && statusCode < 500:
		status = yellow(fmt.Sprintf("[%d]", statusCode))
	default:
		status = red(fmt.Sprintf("[%d]", statusCode))
	}

	var durationStr string
	switch {
	case duration < time.Millisecond:
		durationStr = fmt.Sprintf("%.0fµs", float64(duration.Microseconds()))
	case duration < time.Second:
		durationStr = fmt.Sprintf("%.0fms", float64(duration.Milliseconds()))
	default:
		durationStr = fmt.Sprintf("%.2fs", duration.Seconds())
	}

	fmt.Printf("%s %s %s %s %s\n",
		stamp(),
		magenta(fmt.Sprintf("%-6s", method)),
		white(fmt.Sprintf("%-50s", path)),
		status,
		gray("("+durationStr+")"))
}

// Debug log un message de debug (gris) - actif seulement avec APP_DEBUG
func Debug(message string, args ...interface{}) {
	if !debugEnabled {
		return
	}
	fmt.Printf("%s %s\n", stamp(), gray("DEBUG: "+fmt.Sprintf(message, args...)))
}
