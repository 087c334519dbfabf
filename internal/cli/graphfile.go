package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shaiso/Botflow/internal/engine"
)

// ReadGraph читает граф сценария из файла YAML или JSON.
// "-" — читать из stdin. Формат определяется по расширению,
// без расширения — по первому непробельному символу.
func ReadGraph(path string, stdin io.Reader) (*engine.Graph, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return engine.ParseGraphYAML(data)
	case ".json":
		return engine.ParseGraph(data)
	}

	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return engine.ParseGraph(data)
	}
	return engine.ParseGraphYAML(data)
}

// graphJSON возвращает граф в формате хранения.
func graphJSON(g *engine.Graph) (json.RawMessage, error) {
	data, err := g.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode graph: %w", err)
	}
	return data, nil
}
