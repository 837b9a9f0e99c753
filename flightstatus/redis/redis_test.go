package redis

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LerianStudio/lib-flightstatus/flightstatus/log"
)

func newStandaloneConfig(addr string) Config {
	return Config{
		Topology: Topology{
			Standalone: &StandaloneTopology{Address: addr},
		},
		Logger: &log.NopLogger{},
	}
}

func generateTestCertificatePEM(t *testing.T) []byte {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "flightstatus-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func TestClient_NewAndGetClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := New(context.Background(), newStandaloneConfig(mr.Addr()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	redisClient, err := client.GetClient(context.Background())
	require.NoError(t, err)

	require.NoError(t, redisClient.Set(context.Background(), "test:key", "value", 0).Err())

	value, err := redisClient.Get(context.Background(), "test:key").Result()
	require.NoError(t, err)
	assert.Equal(t, "value", value)

	connected, err := client.IsConnected()
	require.NoError(t, err)
	assert.True(t, connected)
}

func TestClient_Ping(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := New(context.Background(), newStandaloneConfig(mr.Addr()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Ping(context.Background()))

	mr.Close()

	assert.Error(t, client.Ping(context.Background()))
}

func TestClient_New_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		errText string
	}{
		{
			name:    "missing topology",
			cfg:     Config{Logger: &log.NopLogger{}},
			errText: "exactly one topology",
		},
		{
			name: "multiple topologies",
			cfg: Config{
				Topology: Topology{
					Standalone: &StandaloneTopology{Address: "127.0.0.1:6379"},
					Cluster:    &ClusterTopology{Addresses: []string{"127.0.0.1:6379"}},
				},
				Logger: &log.NopLogger{},
			},
			errText: "exactly one topology",
		},
		{
			name: "standalone empty address",
			cfg: Config{
				Topology: Topology{Standalone: &StandaloneTopology{Address: "   "}},
				Logger:   &log.NopLogger{},
			},
			errText: "standalone address is required",
		},
		{
			name: "tls requires ca cert",
			cfg: Config{
				Topology: Topology{Standalone: &StandaloneTopology{Address: "127.0.0.1:6379"}},
				TLS:      &TLSConfig{},
				Logger:   &log.NopLogger{},
			},
			errText: "TLS CA cert is required",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			client, err := New(context.Background(), test.cfg)
			require.Error(t, err)
			assert.Nil(t, client)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), test.errText)
		})
	}
}

func TestValidateTopology(t *testing.T) {
	tests := []struct {
		name     string
		topology Topology
		errText  string
	}{
		{
			name:     "sentinel without addresses",
			topology: Topology{Sentinel: &SentinelTopology{MasterName: "main"}},
			errText:  "sentinel addresses are required",
		},
		{
			name:     "sentinel without master name",
			topology: Topology{Sentinel: &SentinelTopology{Addresses: []string{"127.0.0.1:26379"}}},
			errText:  "sentinel master name is required",
		},
		{
			name: "sentinel with blank address",
			topology: Topology{Sentinel: &SentinelTopology{
				Addresses:  []string{"127.0.0.1:26379", " "},
				MasterName: "main",
			}},
			errText: "sentinel addresses cannot be empty",
		},
		{
			name:     "cluster without addresses",
			topology: Topology{Cluster: &ClusterTopology{}},
			errText:  "cluster addresses are required",
		},
		{
			name:     "cluster with blank address",
			topology: Topology{Cluster: &ClusterTopology{Addresses: []string{""}}},
			errText:  "cluster addresses cannot be empty",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := validateTopology(test.topology)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), test.errText)
		})
	}

	t.Run("valid sentinel", func(t *testing.T) {
		err := validateTopology(Topology{Sentinel: &SentinelTopology{
			Addresses:  []string{"127.0.0.1:26379"},
			MasterName: "main",
		}})
		assert.NoError(t, err)
	})

	t.Run("valid cluster", func(t *testing.T) {
		err := validateTopology(Topology{Cluster: &ClusterTopology{
			Addresses: []string{"127.0.0.1:7000", "127.0.0.1:7001"},
		}})
		assert.NoError(t, err)
	})
}

func TestBuildTLSConfig(t *testing.T) {
	_, err := buildTLSConfig(TLSConfig{CACertBase64: "not-base64"})
	assert.Error(t, err)

	_, err = buildTLSConfig(TLSConfig{CACertBase64: base64.StdEncoding.EncodeToString([]byte("not-a-pem"))})
	assert.Error(t, err)

	validCert := base64.StdEncoding.EncodeToString(generateTestCertificatePEM(t))

	cfg, err := buildTLSConfig(TLSConfig{CACertBase64: validCert})
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)

	cfg, err = buildTLSConfig(TLSConfig{CACertBase64: validCert, MinVersion: tls.VersionTLS13})
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS13), cfg.MinVersion)
}

func TestClient_NilReceiverGuards(t *testing.T) {
	var client *Client

	assert.ErrorIs(t, client.Connect(context.Background()), ErrNilClient)

	_, err := client.GetClient(context.Background())
	assert.ErrorIs(t, err, ErrNilClient)

	assert.ErrorIs(t, client.Close(), ErrNilClient)

	_, err = client.Status()
	assert.ErrorIs(t, err, ErrNilClient)

	_, err = client.IsConnected()
	assert.ErrorIs(t, err, ErrNilClient)

	assert.ErrorIs(t, client.Ping(context.Background()), ErrNilClient)
}

func TestBuildUniversalOptionsLocked_Topologies(t *testing.T) {
	t.Run("standalone", func(t *testing.T) {
		c := &Client{cfg: newStandaloneConfig("10.0.0.1:6379")}

		opts, err := c.buildUniversalOptionsLocked()
		require.NoError(t, err)
		assert.Equal(t, []string{"10.0.0.1:6379"}, opts.Addrs)
	})

	t.Run("sentinel", func(t *testing.T) {
		c := &Client{cfg: Config{
			Topology: Topology{Sentinel: &SentinelTopology{
				Addresses:  []string{"10.0.0.1:26379", "10.0.0.2:26379"},
				MasterName: "main",
			}},
		}}

		opts, err := c.buildUniversalOptionsLocked()
		require.NoError(t, err)
		assert.Equal(t, []string{"10.0.0.1:26379", "10.0.0.2:26379"}, opts.Addrs)
		assert.Equal(t, "main", opts.MasterName)
	})

	t.Run("cluster", func(t *testing.T) {
		c := &Client{cfg: Config{
			Topology: Topology{Cluster: &ClusterTopology{
				Addresses: []string{"10.0.0.1:7000"},
			}},
		}}

		opts, err := c.buildUniversalOptionsLocked()
		require.NoError(t, err)
		assert.Equal(t, []string{"10.0.0.1:7000"}, opts.Addrs)
	})

	t.Run("password applied", func(t *testing.T) {
		cfg := newStandaloneConfig("10.0.0.1:6379")
		cfg.Auth = &StaticPasswordAuth{Password: "hunter2"}
		c := &Client{cfg: cfg}

		opts, err := c.buildUniversalOptionsLocked()
		require.NoError(t, err)
		assert.Equal(t, "hunter2", opts.Password)
	})

	t.Run("zero-value config is rejected", func(t *testing.T) {
		c := &Client{}

		_, err := c.buildUniversalOptionsLocked()
		require.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestNormalizeConnectionOptionsDefaults(t *testing.T) {
	options := ConnectionOptions{}
	normalizeConnectionOptionsDefaults(&options)

	assert.Equal(t, 10, options.PoolSize)
	assert.Equal(t, 3*time.Second, options.ReadTimeout)
	assert.Equal(t, 3*time.Second, options.WriteTimeout)
	assert.Equal(t, 5*time.Second, options.DialTimeout)
	assert.Equal(t, 2*time.Second, options.PoolTimeout)
	assert.Equal(t, 3, options.MaxRetries)
	assert.Equal(t, 8*time.Millisecond, options.MinRetryBackoff)
	assert.Equal(t, time.Second, options.MaxRetryBackoff)
}

func TestNormalizeConnectionOptionsDefaults_PreservesExisting(t *testing.T) {
	options := ConnectionOptions{
		PoolSize:    25,
		ReadTimeout: 10 * time.Second,
		MaxRetries:  7,
	}
	normalizeConnectionOptionsDefaults(&options)

	assert.Equal(t, 25, options.PoolSize)
	assert.Equal(t, 10*time.Second, options.ReadTimeout)
	assert.Equal(t, 7, options.MaxRetries)
}

func TestNormalizeConnectionOptionsDefaults_CapsPoolSize(t *testing.T) {
	options := ConnectionOptions{PoolSize: maxPoolSize + 500}
	normalizeConnectionOptionsDefaults(&options)

	assert.Equal(t, maxPoolSize, options.PoolSize)
}

func TestNormalizeTLSDefaults(t *testing.T) {
	normalizeTLSDefaults(nil)

	tlsCfg := &TLSConfig{CACertBase64: "cert"}
	normalizeTLSDefaults(tlsCfg)
	assert.Equal(t, uint16(tls.VersionTLS12), tlsCfg.MinVersion)

	tlsCfg.MinVersion = tls.VersionTLS13
	normalizeTLSDefaults(tlsCfg)
	assert.Equal(t, uint16(tls.VersionTLS13), tlsCfg.MinVersion)
}

func TestClient_GetClient_ReconnectsWhenNil(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := New(context.Background(), newStandaloneConfig(mr.Addr()))
	require.NoError(t, err)

	require.NoError(t, client.Close())

	connected, err := client.IsConnected()
	require.NoError(t, err)
	require.False(t, connected)

	redisClient, err := client.GetClient(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, redisClient)

	connected, err = client.IsConnected()
	require.NoError(t, err)
	assert.True(t, connected)

	_ = client.Close()
}

func TestClient_GetClient_RateLimitsReconnects(t *testing.T) {
	cfg, err := normalizeConfig(newStandaloneConfig("127.0.0.1:1"))
	require.NoError(t, err)

	c := &Client{cfg: cfg, logger: cfg.Logger}
	c.reconnectAttempts = 1
	c.lastReconnectAttempt = time.Now().Add(time.Hour)

	_, err = c.GetClient(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate-limited")
}

func TestStaticPasswordAuth_Redaction(t *testing.T) {
	auth := StaticPasswordAuth{Password: "hunter2"}

	assert.NotContains(t, auth.String(), "hunter2")
	assert.NotContains(t, auth.GoString(), "hunter2")
}
