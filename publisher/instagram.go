package publisher

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"io"
	"log"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultBaseURL is the private mobile API host.
	DefaultBaseURL = "https://i.instagram.com"
	// DefaultLocale matches the audience of the diary.
	DefaultLocale = "de_DE"

	appID           = "567067343352427"
	authPrefix      = "Bearer IGT:2:"
	signaturePrefix = "SIGNATURE."

	loginPath       = "/api/v1/accounts/login/"
	currentUserPath = "/api/v1/accounts/current_user/"
	configurePath   = "/api/v1/media/configure/"
	ruploadPath     = "/rupload_igphoto/"
)

var defaultDevice = DeviceSettings{
	AppVersion:     "269.0.0.18.75",
	AndroidVersion: 26,
	AndroidRelease: "8.0.0",
	DPI:            "480dpi",
	Resolution:     "1080x1920",
	Manufacturer:   "OnePlus",
	Device:         "devitron",
	Model:          "6T Dev",
	CPU:            "qcom",
	VersionCode:    "314665256",
}

// Instagram talks to the private mobile API the way the Android app does:
// signed form bodies, a bearer token taken from response headers and a
// resumable upload endpoint for photos.
type Instagram struct {
	baseURL  string
	client   *http.Client
	settings Settings
	userID   string
	reuse    bool
	verbose  bool
	logger   *log.Logger
	now      func() time.Time
}

func NewInstagram(baseURL string, client *http.Client, verbose bool, logger *log.Logger) *Instagram {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Instagram{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		verbose: verbose,
		logger:  logger,
		now:     time.Now,
	}
}

// SetReuseSession lets Login skip the password login while a stored
// session is still accepted. Off by default: every Login posts the password.
func (c *Instagram) SetReuseSession(reuse bool) {
	c.reuse = reuse
}

func (c *Instagram) infof(format string, args ...interface{}) {
	if !c.verbose {
		return
	}
	c.logger.Printf("[INFO] [instagram] "+format, args...)
}

// Settings returns a copy of the current session state.
func (c *Instagram) Settings() Settings {
	return c.settings
}

// UserID is the numeric id of the logged in account.
func (c *Instagram) UserID() string {
	return c.userID
}

// LoadSettings restores a previous session from path.
func (c *Instagram) LoadSettings(path string) error {
	s, err := LoadSettingsFile(path)
	if err != nil {
		return err
	}
	c.settings = s
	if id := s.AuthorizationData["ds_user_id"]; id != "" {
		c.userID = id
	}
	c.infof("loaded settings from %s", path)
	return nil
}

// DumpSettings persists the current session to path.
func (c *Instagram) DumpSettings(path string) error {
	return DumpSettingsFile(path, c.settings)
}

// SetLocale sets the app locale, e.g. de_DE, and derives the country from it.
func (c *Instagram) SetLocale(locale string) {
	c.settings.Locale = locale
	if i := strings.LastIndex(locale, "_"); i >= 0 && i+1 < len(locale) {
		c.settings.Country = locale[i+1:]
	}
}

// Init fills in every device identifier and header value that is still
// missing. Identifiers restored by LoadSettings are kept.
func (c *Instagram) Init() {
	s := &c.settings
	if s.UUIDs.PhoneID == "" {
		s.UUIDs.PhoneID = uuid.NewString()
	}
	if s.UUIDs.UUID == "" {
		s.UUIDs.UUID = uuid.NewString()
	}
	if s.UUIDs.ClientSessionID == "" {
		s.UUIDs.ClientSessionID = uuid.NewString()
	}
	if s.UUIDs.AdvertisingID == "" {
		s.UUIDs.AdvertisingID = uuid.NewString()
	}
	if s.UUIDs.AndroidDeviceID == "" {
		s.UUIDs.AndroidDeviceID = "android-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	}
	if s.UUIDs.RequestID == "" {
		s.UUIDs.RequestID = uuid.NewString()
	}
	if s.UUIDs.TraySessionID == "" {
		s.UUIDs.TraySessionID = uuid.NewString()
	}
	if s.DeviceSettings.AppVersion == "" {
		s.DeviceSettings = defaultDevice
	}
	if s.Locale == "" {
		c.SetLocale(DefaultLocale)
	}
	if s.CountryCode == 0 {
		s.CountryCode = 49
	}
	if s.TimezoneOffset == 0 {
		_, offset := c.now().Zone()
		s.TimezoneOffset = offset
	}
	if s.AuthorizationData == nil {
		s.AuthorizationData = map[string]string{}
	}
	if s.Cookies == nil {
		s.Cookies = map[string]string{}
	}
	d := s.DeviceSettings
	s.UserAgent = fmt.Sprintf("Instagram %s Android (%d/%s; %s; %s; %s; %s; %s; %s; %s; %s)",
		d.AppVersion, d.AndroidVersion, d.AndroidRelease, d.DPI, d.Resolution,
		d.Manufacturer, d.Device, d.Model, d.CPU, s.Locale, d.VersionCode)
}

// Login authenticates the account with the password. With SetReuseSession
// a restored session that the server still accepts is kept instead.
func (c *Instagram) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return errors.New("instagram username and password are required")
	}
	if c.settings.UUIDs.UUID == "" {
		c.Init()
	}

	// opt-in: the default always logs in again without probing the session
	if c.reuse && c.settings.AuthorizationData["sessionid"] != "" {
		err := c.currentUser(ctx)
		if err == nil {
			c.infof("reused session for user %s", c.userID)
			c.settings.LastLogin = c.now().Unix()
			return nil
		}
		c.infof("stored session rejected, logging in again: %v", err)
		c.settings.AuthorizationData = map[string]string{}
		c.userID = ""
	}

	u := c.settings.UUIDs
	payload := map[string]string{
		"jazoest":             jazoest(u.PhoneID),
		"country_codes":       fmt.Sprintf(`[{"country_code":"%d","source":["default"]}]`, c.settings.CountryCode),
		"phone_id":            u.PhoneID,
		"enc_password":        fmt.Sprintf("#PWD_INSTAGRAM:0:%d:%s", c.now().Unix(), password),
		"username":            username,
		"adid":                u.AdvertisingID,
		"guid":                u.UUID,
		"device_id":           u.AndroidDeviceID,
		"google_tokens":       "[]",
		"login_attempt_count": "0",
	}
	var out struct {
		LoggedInUser struct {
			PK       json.Number `json:"pk"`
			Username string      `json:"username"`
		} `json:"logged_in_user"`
	}
	if err := c.postSigned(ctx, loginPath, payload, &out); err != nil {
		return err
	}
	if out.LoggedInUser.PK.String() == "" {
		return &APIError{Endpoint: loginPath, Message: "response has no logged_in_user"}
	}
	c.userID = out.LoggedInUser.PK.String()
	c.settings.LastLogin = c.now().Unix()
	c.infof("logged in as %s (%s)", out.LoggedInUser.Username, c.userID)
	return nil
}

func (c *Instagram) currentUser(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+currentUserPath+"?edit=true", nil)
	if err != nil {
		return err
	}
	var out struct {
		User struct {
			PK json.Number `json:"pk"`
		} `json:"user"`
	}
	if err := c.do(req, currentUserPath, &out); err != nil {
		return err
	}
	if out.User.PK.String() == "" {
		return &APIError{Endpoint: currentUserPath, Message: "response has no user"}
	}
	c.userID = out.User.PK.String()
	return nil
}

// PhotoUpload posts one photo with caption to the feed and returns the media id.
// PNG input is converted to JPEG first.
func (c *Instagram) PhotoUpload(ctx context.Context, imagePath, caption string) (string, error) {
	raw, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("reading photo: %w", err)
	}
	data, width, height, err := toJPEG(raw)
	if err != nil {
		return "", fmt.Errorf("converting %s: %w", imagePath, err)
	}

	uploadID := strconv.FormatInt(c.now().UnixMilli(), 10)
	if err := c.rupload(ctx, uploadID, data); err != nil {
		return "", err
	}
	c.infof("uploaded %d bytes as upload_id=%s", len(data), uploadID)

	payload := map[string]string{
		"upload_id":       uploadID,
		"caption":         caption,
		"media_folder":    "Camera",
		"source_type":     "4",
		"width":           strconv.Itoa(width),
		"height":          strconv.Itoa(height),
		"_uid":            c.userID,
		"_uuid":           c.settings.UUIDs.UUID,
		"device_id":       c.settings.UUIDs.AndroidDeviceID,
		"timezone_offset": strconv.Itoa(c.settings.TimezoneOffset),
		"camera_model":    c.settings.DeviceSettings.Model,
	}
	var out struct {
		Media struct {
			ID   string `json:"id"`
			Code string `json:"code"`
		} `json:"media"`
	}
	if err := c.postSigned(ctx, configurePath, payload, &out); err != nil {
		return "", err
	}
	if out.Media.ID == "" {
		return "", &APIError{Endpoint: configurePath, Message: "response has no media id"}
	}
	c.infof("configured media id=%s code=%s", out.Media.ID, out.Media.Code)
	return out.Media.ID, nil
}

func (c *Instagram) rupload(ctx context.Context, uploadID string, data []byte) error {
	name := fmt.Sprintf("%s_0_%d", uploadID, rand.Int64N(9000000000)+1000000000)
	params, err := json.Marshal(map[string]string{
		"retry_context":     `{"num_step_auto_retry":0,"num_reupload":0,"num_step_manual_retry":0}`,
		"media_type":        "1",
		"xsharing_user_ids": "[]",
		"upload_id":         uploadID,
		"image_compression": `{"lib_name":"moz","lib_version":"3.1.m","quality":"80"}`,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ruploadPath+name, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Entity-Type", "image/jpeg")
	req.Header.Set("X-Entity-Name", name)
	req.Header.Set("X-Entity-Length", strconv.Itoa(len(data)))
	req.Header.Set("Offset", "0")
	req.Header.Set("X-Instagram-Rupload-Params", string(params))
	return c.do(req, ruploadPath, nil)
}

func (c *Instagram) postSigned(ctx context.Context, path string, payload map[string]string, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	form := url.Values{"signed_body": {signaturePrefix + string(data)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	return c.do(req, path, out)
}

type apiStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	ErrorType string `json:"error_type"`
}

func (c *Instagram) do(req *http.Request, endpoint string, out interface{}) error {
	c.setHeaders(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return &APIError{Endpoint: endpoint, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: "failed to read body", Cause: err}
	}
	var st apiStatus
	_ = json.Unmarshal(body, &st)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || st.Status == "fail" {
		msg := st.Message
		if msg == "" {
			msg = truncate(strings.TrimSpace(string(body)), 200)
		}
		return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: msg, ErrorType: st.ErrorType}
	}
	c.captureSession(resp)
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: "invalid json", Cause: err}
	}
	return nil
}

func (c *Instagram) setHeaders(req *http.Request) {
	s := c.settings
	req.Header.Set("User-Agent", s.UserAgent)
	req.Header.Set("X-IG-App-ID", appID)
	req.Header.Set("X-IG-App-Locale", s.Locale)
	req.Header.Set("X-IG-Device-Locale", s.Locale)
	req.Header.Set("X-IG-Mapped-Locale", s.Locale)
	req.Header.Set("X-IG-Device-ID", s.UUIDs.UUID)
	req.Header.Set("X-IG-Android-ID", s.UUIDs.AndroidDeviceID)
	req.Header.Set("X-Pigeon-Session-Id", s.UUIDs.ClientSessionID)
	req.Header.Set("X-IG-Timezone-Offset", strconv.Itoa(s.TimezoneOffset))
	if s.MID != "" {
		req.Header.Set("X-MID", s.MID)
	}
	if auth := authorizationHeader(s.AuthorizationData); auth != "" {
		req.Header.Set("Authorization", auth)
	}
}

// captureSession stores the tokens the server hands out in response headers.
func (c *Instagram) captureSession(resp *http.Response) {
	if v := resp.Header.Get("ig-set-authorization"); v != "" {
		if data, ok := parseAuthorization(v); ok {
			c.settings.AuthorizationData = data
			if id := data["ds_user_id"]; id != "" && c.userID == "" {
				c.userID = id
			}
		}
	}
	if v := resp.Header.Get("ig-set-x-mid"); v != "" {
		c.settings.MID = v
	}
	for _, ck := range resp.Cookies() {
		if c.settings.Cookies == nil {
			c.settings.Cookies = map[string]string{}
		}
		c.settings.Cookies[ck.Name] = ck.Value
	}
}

func authorizationHeader(data map[string]string) string {
	if len(data) == 0 {
		return ""
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return authPrefix + base64.StdEncoding.EncodeToString(raw)
}

func parseAuthorization(header string) (map[string]string, bool) {
	if !strings.HasPrefix(header, authPrefix) {
		return nil, false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, authPrefix))
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	var data map[string]string
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, false
	}
	return data, true
}

// jazoest is the checksum the app sends along with the phone id.
func jazoest(phoneID string) string {
	sum := 0
	for _, r := range phoneID {
		sum += int(r)
	}
	return "2" + strconv.Itoa(sum)
}

// toJPEG re-encodes the image as JPEG, flattening transparency onto white.
func toJPEG(data []byte) ([]byte, int, int, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, err
	}
	b := img.Bounds()
	if format == "jpeg" {
		return data, b.Dx(), b.Dy(), nil
	}
	canvas := image.NewRGBA(b)
	draw.Draw(canvas, b, image.White, image.Point{}, draw.Src)
	draw.Draw(canvas, b, img, b.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: 95}); err != nil {
		return nil, 0, 0, err
	}
	return buf.Bytes(), b.Dx(), b.Dy(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
