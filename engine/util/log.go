package util

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/term"
)

var GLOBAL_LOG_LEVEL = LogLevelInfo
var GLOBAL_LOG_CATEGORIES = LogVoxel | LogMesh | LogStaging | LogWorld | LogOpenGL | LogIO | LogTextures

type LogLevel int

const (
	LogLevelError LogLevel = iota + 1
	LogLevelWarning
	LogLevelInfo
	LogLevelDebug
)

type LogCategory int

const (
	LogVoxel LogCategory = 1 << iota
	LogMesh
	LogStaging
	LogWorkspace
	LogOpenGL
	LogIO
	LogWorld
	LogTextures

	LogAll = LogVoxel | LogMesh | LogStaging | LogWorkspace | LogOpenGL | LogIO | LogWorld | LogTextures
)

var categoryNames = map[string]LogCategory{
	"voxel":     LogVoxel,
	"mesh":      LogMesh,
	"staging":   LogStaging,
	"workspace": LogWorkspace,
	"opengl":    LogOpenGL,
	"io":        LogIO,
	"world":     LogWorld,
	"textures":  LogTextures,
	"all":       LogAll,
}

var levelNames = map[string]LogLevel{
	"error":   LogLevelError,
	"warning": LogLevelWarning,
	"info":    LogLevelInfo,
	"debug":   LogLevelDebug,
}

var (
	logMutex  sync.Mutex
	logOutput io.Writer = os.Stderr
	logColor            = isTerminal(os.Stderr)
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// SetLogOutput redirects all log lines. Colouring is only used for terminals.
func SetLogOutput(w io.Writer) {
	logMutex.Lock()
	defer logMutex.Unlock()
	logOutput = w
	logColor = isTerminal(w)
}

func ParseLogLevel(name string) (LogLevel, error) {
	lvl, ok := levelNames[strings.ToLower(name)]
	if !ok {
		return 0, errors.Errorf("unknown log level %q", name)
	}
	return lvl, nil
}

func ParseLogCategories(names []string) (LogCategory, error) {
	var cats LogCategory
	for _, name := range names {
		cat, ok := categoryNames[strings.ToLower(name)]
		if !ok {
			return 0, errors.Errorf("unknown log category %q", name)
		}
		cats |= cat
	}
	return cats, nil
}

func ConfigureLogging(level string, categories []string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}
	GLOBAL_LOG_LEVEL = lvl
	if len(categories) > 0 {
		cats, err := ParseLogCategories(categories)
		if err != nil {
			return err
		}
		GLOBAL_LOG_CATEGORIES = cats
	}
	return nil
}

func log(cat LogCategory, lvl LogLevel, txt string) {
	if lvl > GLOBAL_LOG_LEVEL {
		return
	}
	if GLOBAL_LOG_CATEGORIES&cat == 0 {
		return
	}
	logMutex.Lock()
	defer logMutex.Unlock()
	if logColor {
		switch lvl {
		case LogLevelError:
			txt = "\x1b[31m" + txt + "\x1b[0m"
		case LogLevelWarning:
			txt = "\x1b[33m" + txt + "\x1b[0m"
		case LogLevelDebug:
			txt = "\x1b[90m" + txt + "\x1b[0m"
		}
	}
	fmt.Fprintln(logOutput, txt)
}

func LogVoxelInfo(txt string) {
	log(LogVoxel, LogLevelInfo, txt)
}

func LogVoxelDebug(txt string) {
	log(LogVoxel, LogLevelDebug, txt)
}

func LogVoxelError(txt string) {
	log(LogVoxel, LogLevelError, txt)
}

func LogMeshDebug(txt string) {
	log(LogMesh, LogLevelDebug, txt)
}

func LogMeshInfo(txt string) {
	log(LogMesh, LogLevelInfo, txt)
}

func LogStagingDebug(txt string) {
	log(LogStaging, LogLevelDebug, txt)
}

func LogStagingInfo(txt string) {
	log(LogStaging, LogLevelInfo, txt)
}

func LogStagingError(txt string) {
	log(LogStaging, LogLevelError, txt)
}

func LogWorkspaceDebug(txt string) {
	log(LogWorkspace, LogLevelDebug, txt)
}

func LogIOError(txt string) {
	log(LogIO, LogLevelError, txt)
}

func LogIOInfo(txt string) {
	log(LogIO, LogLevelInfo, txt)
}

func LogWorldInfo(txt string) {
	log(LogWorld, LogLevelInfo, txt)
}

func LogWorldDebug(txt string) {
	log(LogWorld, LogLevelDebug, txt)
}

func LogTextureDebug(txt string) {
	log(LogTextures, LogLevelDebug, txt)
}

func LogTextureError(txt string) {
	log(LogTextures, LogLevelError, txt)
}

func LogGlInfo(txt string) {
	log(LogOpenGL, LogLevelInfo, txt)
}

func LogGlDebug(txt string) {
	log(LogOpenGL, LogLevelDebug, txt)
}

func LogGlError(txt string) {
	log(LogOpenGL, LogLevelError, txt)
}

func LogGlWarning(txt string) {
	log(LogOpenGL, LogLevelWarning, txt)
}
