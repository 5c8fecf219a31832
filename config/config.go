package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"

	"github.com/a-peyrard/injector/option"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	// Options of Load.
	Options struct {
		prefix     string
		configFile string
		dotEnv     bool
		dotEnvs    []string
	}

	Option = option.Option[Options]

	// WithDefault is implemented by configuration structs (nested ones included) completing
	// the values that were not set.
	WithDefault interface {
		ApplyDefault()
	}
)

var withDefaultType = reflect.TypeOf((*WithDefault)(nil)).Elem()

// WithEnvPrefix prefixes every environment variable, FOO giving FOO_SERVER_PORT.
func WithEnvPrefix(prefix string) Option {
	return func(opts *Options) {
		opts.prefix = prefix
	}
}

// WithConfigFile reads a configuration file (any format known by viper) before the
// environment, which still takes precedence.
func WithConfigFile(path string) Option {
	return func(opts *Options) {
		opts.configFile = path
	}
}

// WithDotEnv loads the given dotenv files (".env" if none) into the environment. Variables
// already set are kept, and a missing file is ignored.
func WithDotEnv(files ...string) Option {
	return func(opts *Options) {
		opts.dotEnv = true
		opts.dotEnvs = files
	}
}

// Load builds a T from the environment (and the optional configuration file). Nil pointers to
// nested structs are allocated, then ApplyDefault is called on every struct implementing
// WithDefault.
func Load[T any](opts ...Option) (*T, error) {
	options := option.Build(&Options{}, opts...)

	if options.dotEnv {
		if err := godotenv.Load(options.dotEnvs...); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("unable to load dotenv files %v: %w", options.dotEnvs, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(options.prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if options.configFile != "" {
		v.SetConfigFile(options.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("unable to read config file %s: %w", options.configFile, err)
		}
	}

	var conf T
	bindEnvs(v, options.prefix, reflect.TypeOf(conf))

	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config: %w", err)
	}

	walk(reflect.ValueOf(&conf), nil, func(val reflect.Value, _ []string) {
		allocateNilStruct(val)
		applyDefault(val)
	})

	return &conf, nil
}

func applyDefault(val reflect.Value) {
	switch {
	case isNilPointer(val):
	case val.Type().Implements(withDefaultType):
		val.Interface().(WithDefault).ApplyDefault()
	case val.Kind() == reflect.Struct && val.CanAddr() && val.Addr().Type().Implements(withDefaultType):
		val.Addr().Interface().(WithDefault).ApplyDefault()
	}
}

// bindEnvs binds an environment variable to every leaf key of typ, so Unmarshal sees them
// even when the configuration file does not declare the key.
func bindEnvs(v *viper.Viper, envPrefix string, typ reflect.Type, parts ...string) {
	if typ == nil || typ.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		name, ok := field.Tag.Lookup("mapstructure")
		if !ok {
			name = field.Name
		}

		fieldTyp := field.Type
		if fieldTyp.Kind() == reflect.Pointer {
			fieldTyp = fieldTyp.Elem()
		}
		if fieldTyp.Kind() == reflect.Struct {
			bindEnvs(v, envPrefix, fieldTyp, append(parts, name)...)
			continue
		}

		path := append(parts, name)
		envParts := make([]string, len(path))
		for j, part := range path {
			envParts[j] = toScreamingSnakeCase(part)
		}
		_ = v.BindEnv(strings.Join(path, "."), envName(envPrefix, strings.Join(envParts, "_")))
	}
}

func envName(envPrefix string, in string) string {
	if envPrefix != "" {
		return strings.ToUpper(envPrefix + "_" + in)
	}
	return strings.ToUpper(in)
}
