package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"view": { "markerTypes": ["ArrowMarker", "FrameMarker"], "defaultWidth": 1024 },
		"server": { "address": "0.0.0.0:9000" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "0.0.0.0:9000", viper.GetString("server.address"))
	assert.Equal(t, 1024, viper.GetInt("view.defaultWidth"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load(writeConfig(t, `{}`))
	require.NoError(t, err)

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./markerview-logs", viper.GetString("logsDir"))
	assert.Equal(t, 800, viper.GetInt("view.defaultWidth"))
	assert.Equal(t, 600, viper.GetInt("view.defaultHeight"))
	assert.Equal(t, false, viper.GetBool("export.compress"))
	assert.Equal(t, "localhost:8765", viper.GetString("server.address"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "markerview", viper.GetString("otel.serviceName"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
}

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load(t.TempDir())
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "info", viper.GetString("logLevel"))
}

func TestLoad_InvalidJSON(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load(writeConfig(t, `{"logLevel": `))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestTypedGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("view.title", "review")
	viper.Set("server.sendBuffer", 16)
	viper.Set("export.compress", true)

	assert.Equal(t, "review", GetString("view.title"))
	assert.Equal(t, 16, GetInt("server.sendBuffer"))
	assert.True(t, GetBool("export.compress"))
	assert.Empty(t, GetString("missing"))
}

func TestGetViewConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"view": {"markerTypes": ["ArrowMarker", "FrameMarker"]}}`)))

	cfg, err := GetViewConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"ArrowMarker", "FrameMarker"}, cfg.MarkerTypes)
	assert.Equal(t, 800.0, cfg.DefaultWidth)
	assert.Equal(t, 600.0, cfg.DefaultHeight)
}

func TestGetViewConfig_RejectsZeroSize(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"view": {"defaultWidth": 0}}`)))

	_, err := GetViewConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid view config")
}

func TestGetServerConfig(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    ServerConfig
		wantErr bool
	}{
		{
			name: "defaults",
			body: `{}`,
			want: ServerConfig{Address: "localhost:8765", ReadLimit: 1 << 20, WriteTimeout: 10 * time.Second, SendBuffer: 64},
		},
		{
			name: "override",
			body: `{"server": {"address": "127.0.0.1:9999", "readLimit": 4096, "writeTimeout": "2s", "sendBuffer": 8, "saveDir": "./saved"}}`,
			want: ServerConfig{Address: "127.0.0.1:9999", ReadLimit: 4096, WriteTimeout: 2 * time.Second, SendBuffer: 8, SaveDir: "./saved"},
		},
		{
			name:    "bad address",
			body:    `{"server": {"address": "nowhere"}}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(viper.Reset)
			require.NoError(t, Load(writeConfig(t, tt.body)))

			got, err := GetServerConfig()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetOTelConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
		want OTelConfig
	}{
		{
			name: "defaults",
			body: `{}`,
			want: OTelConfig{ServiceName: "markerview", BatchTimeout: 5 * time.Second, Insecure: true},
		},
		{
			name: "collector",
			body: `{"otel": {"enabled": true, "serviceName": "markerview-eu", "batchTimeout": "30s", "endpoint": "collector:4318", "insecure": false}}`,
			want: OTelConfig{Enabled: true, ServiceName: "markerview-eu", BatchTimeout: 30 * time.Second, Endpoint: "collector:4318"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(viper.Reset)
			require.NoError(t, Load(writeConfig(t, tt.body)))

			got, err := GetOTelConfig()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetGraylogConfig_RequiresAddressWhenEnabled(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"graylog": {"enabled": true, "address": ""}}`)))

	_, err := GetGraylogConfig()
	assert.Error(t, err)
}

func TestGetExportConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"export": {"compress": true}}`)))
	assert.True(t, GetExportConfig().Compress)
}

func TestGetAPIConfig(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    APIConfig
		wantErr bool
	}{
		{
			name: "defaults",
			body: `{}`,
			want: APIConfig{Timeout: 30 * time.Second},
		},
		{
			name: "override",
			body: `{"api": {"url": "https://annotations.example.com", "apiKey": "s3cret", "timeout": "5s"}}`,
			want: APIConfig{URL: "https://annotations.example.com", APIKey: "s3cret", Timeout: 5 * time.Second},
		},
		{
			name:    "bad url",
			body:    `{"api": {"url": "not a url"}}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(viper.Reset)
			require.NoError(t, Load(writeConfig(t, tt.body)))

			got, err := GetAPIConfig()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
