package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"

	"github.com/a-peyrard/blackmagic/option"
	"github.com/a-peyrard/blackmagic/reflectutils"
	"github.com/a-peyrard/blackmagic/str"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Options struct {
		prefix   string
		dotEnv   []string
		envFiles bool
	}

	// WithDefault is implemented by configuration structs (and injectable types)
	// that fill their own zero fields after construction.
	WithDefault interface {
		ApplyDefault()
	}
)

var withDefaultType = reflect.TypeOf((*WithDefault)(nil)).Elem()

func WithEnvPrefix(prefix string) option.Option[Options] {
	return func(opts *Options) {
		opts.prefix = prefix
	}
}

// WithDotEnv loads the given .env files (".env" when none) before reading the environment.
// Variables already set in the process win; missing files are skipped.
func WithDotEnv(paths ...string) option.Option[Options] {
	return func(opts *Options) {
		opts.envFiles = true
		opts.dotEnv = append(opts.dotEnv, paths...)
	}
}

func Load[T any](opts ...option.Option[Options]) (*T, error) {
	options := option.Build(&Options{}, opts...)

	if options.envFiles {
		if err := loadDotEnv(options.dotEnv); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	v.SetEnvPrefix(options.prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var vT T
	bindEnvs(v, options.prefix, reflect.New(reflect.TypeOf(vT)).Elem().Interface())

	if err := v.Unmarshal(&vT); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config:\n\t%w", err)
	}

	reflectutils.WalkStruct(&vT, reflectutils.AllocNilStruct, applyDefaults)

	return &vT, nil
}

// ApplyDefaults calls ApplyDefault on val when it implements WithDefault, or on
// its address when only the pointer does. Nil pointers are left alone.
func ApplyDefaults(val reflect.Value) {
	if !val.IsValid() {
		return
	}
	if !val.Type().Implements(withDefaultType) {
		if !val.CanAddr() || !reflect.PointerTo(val.Type()).Implements(withDefaultType) {
			return
		}
		val = val.Addr()
	}
	if val.Kind() == reflect.Pointer && val.IsNil() {
		return
	}
	val.Interface().(WithDefault).ApplyDefault()
}

func applyDefaults(field reflectutils.Field) {
	ApplyDefaults(field.Value)
}

func loadDotEnv(paths []string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("unable to load env file %s:\n\t%w", path, err)
		}
	}
	return nil
}

func bindEnvs(viperI *viper.Viper, envPrefix string, myStruct any, parts ...string) {
	ifv := reflect.ValueOf(myStruct)
	ift := reflect.TypeOf(myStruct)
	for i := 0; i < ift.NumField(); i++ {
		v := ifv.Field(i)
		t := ift.Field(i)
		if !t.IsExported() {
			continue
		}
		tv, ok := t.Tag.Lookup("mapstructure")
		if !ok {
			tv = t.Name
		}
		switch v.Kind() {
		case reflect.Struct:
			bindEnvs(viperI, envPrefix, v.Interface(), append(parts, tv)...)
		case reflect.Pointer:
			if t.Type.Elem().Kind() == reflect.Struct {
				bindEnvs(viperI, envPrefix, reflect.Zero(t.Type.Elem()).Interface(), append(parts, tv)...)
			}
		default:
			key := strings.Join(append(parts, tv), ".")
			join := strings.Join(append(parts, str.ToScreamingSnakeCase(tv)), ".")
			_ = viperI.BindEnv(key, mergeWithEnvPrefix(envPrefix, join))
		}
	}
}

func mergeWithEnvPrefix(envPrefix string, in string) string {
	if envPrefix != "" {
		return strings.ToUpper(envPrefix + "_" + in)
	}

	return strings.ToUpper(in)
}
