package config

import (
	"net"
	"os"
	"sync"
)

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker returns true if the application is running inside a Docker container.
// Detection is based on the presence of /.dockerenv. The result is cached after the first call.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker returns "host.docker.internal" for loopback hosts when
// running in Docker so that Postgres, Redis and MinIO on the host stay reachable.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}
	if host == "localhost" || host == "127.0.0.1" {
		return "host.docker.internal"
	}
	return host
}

// ResolveEndpointForDocker is ResolveHostForDocker for host:port endpoints.
func ResolveEndpointForDocker(endpoint string) string {
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		return ResolveHostForDocker(endpoint)
	}
	return net.JoinHostPort(ResolveHostForDocker(host), port)
}

// resolveDockerHosts rewrites loopback hosts of every backing service.
func (c *Config) resolveDockerHosts() {
	c.Database.Host = ResolveHostForDocker(c.Database.Host)
	c.Redis.Host = ResolveHostForDocker(c.Redis.Host)
	c.Storage.Endpoint = ResolveEndpointForDocker(c.Storage.Endpoint)
}
