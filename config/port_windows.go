//go:build windows

package config

func defaultPort() string {
	return "COM3"
}
