package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type (
	TestConfig struct {
		Foo *FooTestConfig
		Bar *BarTestConfig
	}
	FooTestConfig struct {
		Hello string
		World int
	}
	BarTestConfig struct {
		First  int
		Second int
	}
	MultipleWordsConfig struct {
		FooBar     int
		CustomerId int
	}
	NestedValueConfig struct {
		Server ServerTestConfig
	}
	ServerTestConfig struct {
		Host string
		Port int
	}
)

func (c *BarTestConfig) ApplyDefault() {
	if c.First == 0 {
		c.First = 42
	}
}

func (c *ServerTestConfig) ApplyDefault() {
	if c.Port == 0 {
		c.Port = 8080
	}
}

func TestLoad(t *testing.T) {
	t.Run("it should load basic struct", func(t *testing.T) {
		// GIVEN
		t.Setenv("FOO_HELLO", "waldo")
		t.Setenv("FOO_WORLD", "23")

		// WHEN
		conf, err := Load[FooTestConfig](WithEnvPrefix("FOO"))

		// THEN
		require.NoError(t, err)
		assert.Equal(t, "waldo", conf.Hello)
		assert.Equal(t, 23, conf.World)
	})

	t.Run("it should load nested structs from env vars", func(t *testing.T) {
		// GIVEN
		t.Setenv("TEST_FOO_HELLO", "waldo")
		t.Setenv("TEST_FOO_WORLD", "23")
		t.Setenv("TEST_BAR_FIRST", "12")
		t.Setenv("TEST_BAR_SECOND", "66")

		// WHEN
		conf, err := Load[TestConfig](WithEnvPrefix("TEST"))

		// THEN
		require.NoError(t, err)
		assert.Equal(t, "waldo", conf.Foo.Hello)
		assert.Equal(t, 23, conf.Foo.World)
		assert.Equal(t, 12, conf.Bar.First)
		assert.Equal(t, 66, conf.Bar.Second)
	})

	t.Run("it should initialize nested struct even if no env vars for this struct", func(t *testing.T) {
		// GIVEN
		t.Setenv("TEST_BAR_FIRST", "12")
		t.Setenv("TEST_BAR_SECOND", "66")

		// WHEN
		conf, err := Load[TestConfig](WithEnvPrefix("TEST"))

		// THEN
		require.NoError(t, err)
		require.NotNil(t, conf.Foo)
		assert.Equal(t, "", conf.Foo.Hello)
		assert.Equal(t, 0, conf.Foo.World)
		assert.Equal(t, 12, conf.Bar.First)
		assert.Equal(t, 66, conf.Bar.Second)
	})

	t.Run("it should apply default if the struct implements WithDefault", func(t *testing.T) {
		// GIVEN

		// WHEN
		conf, err := Load[TestConfig](WithEnvPrefix("TEST"))

		// THEN
		require.NoError(t, err)
		assert.Equal(t, 42, conf.Bar.First)
		assert.Equal(t, 0, conf.Bar.Second)
	})

	t.Run("it should apply default on nested value structs", func(t *testing.T) {
		// GIVEN
		t.Setenv("NESTED_SERVER_HOST", "localhost")

		// WHEN
		conf, err := Load[NestedValueConfig](WithEnvPrefix("NESTED"))

		// THEN
		require.NoError(t, err)
		assert.Equal(t, "localhost", conf.Server.Host)
		assert.Equal(t, 8080, conf.Server.Port)
	})

	t.Run("it should bind correctly multiple words variables", func(t *testing.T) {
		// GIVEN
		t.Setenv("TEST_FOO_BAR", "12")
		t.Setenv("TEST_CUSTOMER_ID", "66")

		// WHEN
		conf, err := Load[MultipleWordsConfig](WithEnvPrefix("TEST"))

		// THEN
		require.NoError(t, err)
		assert.Equal(t, 12, conf.FooBar)
		assert.Equal(t, 66, conf.CustomerId)
	})

	t.Run("it should read a config file and let env vars override it", func(t *testing.T) {
		// GIVEN
		file := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(file, []byte("foo:\n  hello: from-file\n  world: 1\n"), 0o600))
		t.Setenv("FILE_FOO_WORLD", "2")

		// WHEN
		conf, err := Load[TestConfig](WithEnvPrefix("FILE"), WithConfigFile(file))

		// THEN
		require.NoError(t, err)
		assert.Equal(t, "from-file", conf.Foo.Hello)
		assert.Equal(t, 2, conf.Foo.World)
	})

	t.Run("it should fail on a missing config file", func(t *testing.T) {
		// GIVEN
		file := filepath.Join(t.TempDir(), "missing.yaml")

		// WHEN
		_, err := Load[TestConfig](WithConfigFile(file))

		// THEN
		assert.ErrorContains(t, err, "unable to read config file")
	})

	t.Run("it should load dotenv files without overriding the environment", func(t *testing.T) {
		// GIVEN
		file := filepath.Join(t.TempDir(), "test.env")
		require.NoError(t, os.WriteFile(file, []byte("DOTENV_HELLO=from-dotenv\nDOTENV_WORLD=3\n"), 0o600))
		t.Setenv("DOTENV_WORLD", "4")
		t.Setenv("DOTENV_HELLO", "")
		require.NoError(t, os.Unsetenv("DOTENV_HELLO"))

		// WHEN
		conf, err := Load[FooTestConfig](WithEnvPrefix("DOTENV"), WithDotEnv(file))

		// THEN
		require.NoError(t, err)
		assert.Equal(t, "from-dotenv", conf.Hello)
		assert.Equal(t, 4, conf.World)
	})

	t.Run("it should ignore a missing dotenv file", func(t *testing.T) {
		// GIVEN
		file := filepath.Join(t.TempDir(), "missing.env")

		// WHEN
		_, err := Load[FooTestConfig](WithEnvPrefix("DOTENV"), WithDotEnv(file))

		// THEN
		assert.NoError(t, err)
	})
}

func TestToScreamingSnakeCase(t *testing.T) {
	t.Run("it should convert PascalCase", func(t *testing.T) {
		assert.Equal(t, "CUSTOMER_ID", toScreamingSnakeCase("CustomerId"))
	})

	t.Run("it should keep underscores as separators", func(t *testing.T) {
		assert.Equal(t, "LOG_LEVEL", toScreamingSnakeCase("log_level"))
	})

	t.Run("it should handle kebab-case", func(t *testing.T) {
		assert.Equal(t, "KEBAB_CASE_STRING", toScreamingSnakeCase("kebab-case-string"))
	})

	t.Run("it should return empty string as is", func(t *testing.T) {
		assert.Equal(t, "", toScreamingSnakeCase("  "))
	})
}

func TestSettings(t *testing.T) {
	t.Run("it should default to info level", func(t *testing.T) {
		// GIVEN
		t.Setenv("INJECTOR_LOG_LEVEL", "")

		// WHEN
		settings, err := Load[Settings](WithEnvPrefix(SettingsPrefix))

		// THEN
		require.NoError(t, err)
		assert.Equal(t, "info", settings.LogLevel)
		assert.Equal(t, zerolog.InfoLevel, settings.Level())
		assert.False(t, settings.DryRun)
	})

	t.Run("it should read the log level and dry run flag", func(t *testing.T) {
		// GIVEN
		t.Setenv("INJECTOR_LOG_LEVEL", "DEBUG")
		t.Setenv("INJECTOR_DRY_RUN", "true")

		// WHEN
		settings, err := Load[Settings](WithEnvPrefix(SettingsPrefix))

		// THEN
		require.NoError(t, err)
		assert.Equal(t, zerolog.DebugLevel, settings.Level())
		assert.True(t, settings.DryRun)
	})

	t.Run("it should fall back to info on an unknown level", func(t *testing.T) {
		// GIVEN
		settings := &Settings{LogLevel: "verbose"}

		// WHEN
		level := settings.Level()

		// THEN
		assert.Equal(t, zerolog.InfoLevel, level)
	})
}
