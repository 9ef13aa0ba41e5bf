package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	envConfig    = "POINTERNET_CONFIG"
	envModel     = "POINTERNET_MODEL"
	envModelsDir = "POINTERNET_MODELS_DIR"

	checkpointSuffix = ".ckpt.json"
)

// stdinIsTTY is a small seam for tests.
var stdinIsTTY = isTTY

// resolveModelPath turns --model into a checkpoint file. The flag may name a
// file or a directory; when empty, POINTERNET_MODELS_DIR is searched.
func resolveModelPath(modelFlag string, stdin io.Reader, stderr io.Writer) (string, error) {
	path := strings.TrimSpace(modelFlag)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(envModelsDir))
	}
	if path == "" {
		return "", fmt.Errorf("--model is required unless %s is set", envModelsDir)
	}
	path = filepath.Clean(path)

	st, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !st.IsDir() {
		return path, nil
	}

	models, err := discoverCheckpoints(path)
	if err != nil {
		return "", err
	}
	switch len(models) {
	case 0:
		return "", fmt.Errorf("no *%s checkpoints found in %s", checkpointSuffix, path)
	case 1:
		_, _ = fmt.Fprintf(stderr, "using checkpoint %s\n", models[0])
		return models[0], nil
	default:
		if !stdinIsTTY() {
			return "", fmt.Errorf("multiple checkpoints found in %s but stdin is not interactive; set --model", path)
		}
		return selectCheckpoint(path, models, stdin, stderr)
	}
}

func discoverCheckpoints(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var models []string
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), checkpointSuffix) {
			continue
		}
		models = append(models, filepath.Join(dir, e.Name()))
	}
	sort.Strings(models)
	return models, nil
}

func selectCheckpoint(dir string, models []string, stdin io.Reader, stderr io.Writer) (string, error) {
	_, _ = fmt.Fprintf(stderr, "select a checkpoint from %s\n", dir)
	for i, m := range models {
		_, _ = fmt.Fprintf(stderr, "%d. %s\n", i+1, filepath.Base(m))
	}

	reader := bufio.NewReader(stdin)
	for {
		_, _ = fmt.Fprintf(stderr, "enter selection [1-%d]: ", len(models))
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		line = strings.TrimSpace(line)
		idx, convErr := strconv.Atoi(line)
		if line != "" && convErr == nil && idx >= 1 && idx <= len(models) {
			return models[idx-1], nil
		}
		if errors.Is(err, io.EOF) {
			return "", errors.New("no valid selection provided on stdin; set --model")
		}
		if line != "" {
			_, _ = fmt.Fprintf(stderr, "invalid selection %q\n", line)
		}
	}
}

func isTTY() bool {
	st, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (st.Mode() & os.ModeCharDevice) != 0
}
