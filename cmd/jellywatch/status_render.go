package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"jellywatch/internal/api"
	"jellywatch/internal/settings"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

// daemonStatusLines renders the status payload one check per line.
func daemonStatusLines(status api.DaemonStatus, colorize bool) []string {
	var lines []string
	add := func(label string, kind statusKind, message string) {
		lines = append(lines, renderStatusLine(label, kind, message, colorize))
	}

	if status.Running {
		add("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID))
	} else {
		add("Daemon", statusError, "Not running")
	}
	if status.Configured {
		add("Jellyfin", statusOK, status.JellyfinURL)
	} else {
		add("Jellyfin", statusWarn, "Not configured (run `jellywatch settings set`)")
	}
	if status.SchedulerRunning {
		add("Scheduler", statusOK, fmt.Sprintf("%d job(s) scheduled", status.JobCount))
	} else {
		add("Scheduler", statusError, "Stopped")
	}
	add("Circuit breaker", breakerKind(status.BreakerState), status.BreakerState)
	if status.LastSync == "" {
		add("Libraries", statusInfo, "Never synced")
	} else {
		add("Libraries", statusInfo, fmt.Sprintf("%d (synced %s)", status.LibraryCount, status.LastSync))
	}
	return lines
}

func databaseHealthLine(health settings.DatabaseHealth, err error, colorize bool) string {
	switch {
	case err != nil && health.Error != "":
		return renderStatusLine("Database", statusError, health.Error, colorize)
	case err != nil:
		return renderStatusLine("Database", statusError, err.Error(), colorize)
	case len(health.MissingTables) > 0:
		return renderStatusLine("Database", statusError, "missing tables: "+strings.Join(health.MissingTables, ", "), colorize)
	case !health.IntegrityCheck:
		return renderStatusLine("Database", statusWarn, "integrity check failed", colorize)
	case health.SchemaVersion != health.ExpectedVersion:
		return renderStatusLine("Database", statusWarn,
			fmt.Sprintf("schema %s, expected %s", health.SchemaVersion, health.ExpectedVersion), colorize)
	default:
		return renderStatusLine("Database", statusOK, fmt.Sprintf("%s (schema %s)", health.DBPath, health.SchemaVersion), colorize)
	}
}

func breakerKind(state string) statusKind {
	switch state {
	case "closed":
		return statusOK
	case "half-open":
		return statusWarn
	case "open":
		return statusError
	default:
		return statusInfo
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
