//go:build !windows

package config

// defaultPort is where MediaTek boot ROMs enumerate as a CDC ACM device.
func defaultPort() string {
	return "/dev/ttyACM0"
}
