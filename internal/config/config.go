// Package config loads flat option structs from a TOML file, CAMHAL_*
// environment variables and command line flags, and watches the file for
// changes.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/camhal/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "CAMHAL_"

// LoadConfig fills opts, a pointer to a flat struct, with precedence CLI
// flags > env vars > config file. Fields carry a toml tag with a dotted
// path and an env tag without the prefix. The file path comes from a
// string field named Config; a missing file is not an error. Flags set
// explicitly on cmd are never overwritten.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config: want pointer to struct, got %T", opts)
	}
	v = v.Elem()
	t := v.Type()

	changed := make(map[string]bool)
	if cmd != nil {
		mark := func(f *pflag.Flag) {
			if f.Changed {
				changed[f.Name] = true
			}
		}
		// Persistent flags of a parent are only merged into Flags() of
		// the command that ran.
		cmd.Flags().VisitAll(mark)
		cmd.PersistentFlags().VisitAll(mark)
	}

	var tree map[string]any
	if field := v.FieldByName("Config"); field.IsValid() && field.Kind() == reflect.String && field.String() != "" {
		data, err := os.ReadFile(field.String())
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return fmt.Errorf("failed to read config: %w", err)
		default:
			if err := toml.Unmarshal(data, &tree); err != nil {
				return fmt.Errorf("failed to parse TOML config: %w", err)
			}
		}
	}

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		sf := t.Field(i)
		if changed[flagName(sf)] {
			continue
		}

		if path := sf.Tag.Get("toml"); path != "" && tree != nil {
			if value := getNestedValue(tree, path); value != nil {
				if err := setFieldValue(field, value); err != nil {
					return fmt.Errorf("config %s: %w", path, err)
				}
			}
		}

		if key := sf.Tag.Get("env"); key != "" {
			if value, ok := os.LookupEnv(EnvPrefix + key); ok && value != "" {
				if err := setFieldValueFromString(field, value); err != nil {
					return fmt.Errorf("env %s%s: %w", EnvPrefix, key, err)
				}
			}
		}
	}
	return nil
}

// flagName mirrors how humacli names the flag of a field.
func flagName(sf reflect.StructField) string {
	if name := sf.Tag.Get("name"); name != "" {
		return name
	}
	return fieldNameToFlag(sf.Name)
}

// fieldNameToFlag converts a struct field name to a CLI flag name.
// Example: "LoggingLevel" -> "logging-level", "Port" -> "port".
func fieldNameToFlag(fieldName string) string {
	var result []rune
	for i, r := range fieldName {
		if i > 0 && unicode.IsUpper(r) {
			result = append(result, '-')
		}
		result = append(result, unicode.ToLower(r))
	}
	return string(result)
}

// getNestedValue retrieves a value from a decoded TOML tree by dotted path.
func getNestedValue(data map[string]any, path string) any {
	parts := strings.Split(path, ".")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return current[parts[len(parts)-1]]
}

func setFieldValue(field reflect.Value, value any) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("want string, got %T", value)
		}
		field.SetString(s)
	case reflect.Bool:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("want bool, got %T", value)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64, reflect.Int32:
		n, ok := value.(int64)
		if !ok {
			return fmt.Errorf("want integer, got %T", value)
		}
		if field.OverflowInt(n) {
			return fmt.Errorf("%d out of range", n)
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint32, reflect.Uint64:
		n, ok := value.(int64)
		if !ok || n < 0 || field.OverflowUint(uint64(n)) {
			return fmt.Errorf("want unsigned integer, got %v", value)
		}
		field.SetUint(uint64(n))
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		arr, ok := value.([]any)
		if !ok {
			return fmt.Errorf("want array, got %T", value)
		}
		slice := make([]string, 0, len(arr))
		for _, v := range arr {
			if s, ok := v.(string); ok {
				slice = append(slice, s)
			}
		}
		field.Set(reflect.ValueOf(slice))
	}
	return nil
}

func setFieldValueFromString(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64, reflect.Int32:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))
	}
	return nil
}

// file is the part of the config file re-read on reload.
type file struct {
	Logging logging.Config `toml:"logging"`
}

// LoadLogging reads the [logging] table of the config file. Missing
// level and format fall back to info and text.
func LoadLogging(path string) (logging.Config, error) {
	var f file
	data, err := os.ReadFile(path)
	if err != nil {
		return logging.Config{}, err
	}
	if err := toml.Unmarshal(data, &f); err != nil {
		return logging.Config{}, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	if f.Logging.Level == "" {
		f.Logging.Level = "info"
	}
	if f.Logging.Format == "" {
		f.Logging.Format = "text"
	}
	if f.Logging.Modules == nil {
		f.Logging.Modules = make(map[string]string)
	}
	return f.Logging, nil
}
