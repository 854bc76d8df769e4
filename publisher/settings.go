package publisher

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// UUIDs identify the emulated device towards Instagram. They are generated
// once and must stay stable across logins.
type UUIDs struct {
	PhoneID         string `json:"phone_id"`
	UUID            string `json:"uuid"`
	ClientSessionID string `json:"client_session_id"`
	AdvertisingID   string `json:"advertising_id"`
	AndroidDeviceID string `json:"android_device_id"`
	RequestID       string `json:"request_id"`
	TraySessionID   string `json:"tray_session_id"`
}

// DeviceSettings describe the emulated Android device.
type DeviceSettings struct {
	AppVersion     string `json:"app_version"`
	AndroidVersion int    `json:"android_version"`
	AndroidRelease string `json:"android_release"`
	DPI            string `json:"dpi"`
	Resolution     string `json:"resolution"`
	Manufacturer   string `json:"manufacturer"`
	Device         string `json:"device"`
	Model          string `json:"model"`
	CPU            string `json:"cpu"`
	VersionCode    string `json:"version_code"`
}

// Settings is the persisted session state of the Instagram client. It is
// shared by every date and rewritten after each successful login.
type Settings struct {
	UUIDs             UUIDs             `json:"uuids"`
	MID               string            `json:"mid,omitempty"`
	AuthorizationData map[string]string `json:"authorization_data"`
	Cookies           map[string]string `json:"cookies"`
	LastLogin         int64             `json:"last_login,omitempty"`
	DeviceSettings    DeviceSettings    `json:"device_settings"`
	UserAgent         string            `json:"user_agent"`
	Country           string            `json:"country"`
	CountryCode       int               `json:"country_code"`
	Locale            string            `json:"locale"`
	TimezoneOffset    int               `json:"timezone_offset"`
}

// LoadSettingsFile reads session state written by DumpSettingsFile.
func LoadSettingsFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parsing settings %s: %w", path, err)
	}
	return s, nil
}

// DumpSettingsFile writes session state with owner-only permissions. The
// file is replaced through a rename so a crash never leaves it truncated.
func DumpSettingsFile(path string, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("writing settings %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing settings %s: %w", path, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing settings %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing settings %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("writing settings %s: %w", path, err)
	}
	return nil
}
