package publisher

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPublisher(t *testing.T, fake *fakeInstagram, settingsPath string) *Publisher {
	t.Helper()
	return newTestPublisherFormat(t, fake, settingsPath, "")
}

func newTestPublisherFormat(t *testing.T, fake *fakeInstagram, settingsPath, format string) *Publisher {
	t.Helper()
	logger, _ := testLogger()
	p, err := New(Config{
		Username:      "diary",
		Password:      "secret",
		BaseURL:       fake.URL(),
		SettingsPath:  settingsPath,
		CaptionFormat: format,
	}, nil, true, logger)
	require.NoError(t, err)
	return p
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(Config{Password: "x"}, nil, false, nil)
	assert.Error(t, err)
	_, err = New(Config{Username: "x"}, nil, false, nil)
	assert.Error(t, err)

	p, err := New(Config{Username: "x", Password: "y"}, nil, false, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultLocale, p.cfg.Locale)
	assert.Equal(t, DefaultSettingsPath, p.cfg.SettingsPath)
	assert.Equal(t, CaptionRaw, p.cfg.CaptionFormat)
}

func TestPublish_FreshSession(t *testing.T) {
	fake := newFakeInstagram(t)
	dir := t.TempDir()
	settingsPath := filepath.Join(dir, "insta_settings.json")
	p := newTestPublisher(t, fake, settingsPath)

	post := "Liebes Tagebuch,\n\n**heute** war schön. 5*3*2 \\* <b>fett</b>\n\n#tagebuch"
	id, err := p.Publish(context.Background(), writePNG(t, dir), post)
	require.NoError(t, err)
	assert.Equal(t, "3141_42", id)

	require.Len(t, fake.configures, 1)
	assert.Equal(t, post, fake.configures[0]["caption"])

	saved, err := LoadSettingsFile(settingsPath)
	require.NoError(t, err)
	assert.Equal(t, "de_DE", saved.Locale)
	assert.Equal(t, "42%3Asess", saved.AuthorizationData["sessionid"])
	assert.NotEmpty(t, saved.UUIDs.PhoneID)
}

func TestPublish_PlainCaption(t *testing.T) {
	fake := newFakeInstagram(t)
	dir := t.TempDir()
	p := newTestPublisherFormat(t, fake, filepath.Join(dir, "insta_settings.json"), CaptionPlain)

	_, err := p.Publish(context.Background(), writePNG(t, dir), "Liebes Tagebuch,\n\n**heute** war schön.")
	require.NoError(t, err)

	require.Len(t, fake.configures, 1)
	assert.Equal(t, "Liebes Tagebuch,\n\nheute war schön.", fake.configures[0]["caption"])
}

func TestPublish_ReusesDeviceFromSettings(t *testing.T) {
	fake := newFakeInstagram(t)
	dir := t.TempDir()
	settingsPath := filepath.Join(dir, "insta_settings.json")
	require.NoError(t, DumpSettingsFile(settingsPath, Settings{
		UUIDs:  UUIDs{PhoneID: "phone-1", UUID: "uuid-1"},
		Locale: "en_US",
	}))
	p := newTestPublisher(t, fake, settingsPath)

	_, err := p.Publish(context.Background(), writePNG(t, dir), "post")
	require.NoError(t, err)

	require.Len(t, fake.logins, 1)
	assert.Equal(t, "phone-1", fake.logins[0]["phone_id"])
	assert.Equal(t, "uuid-1", fake.logins[0]["guid"])

	saved, err := LoadSettingsFile(settingsPath)
	require.NoError(t, err)
	assert.Equal(t, "phone-1", saved.UUIDs.PhoneID)
	assert.Equal(t, "de_DE", saved.Locale)
}

func TestPublish_LoginFailureSkipsUpload(t *testing.T) {
	fake := newFakeInstagram(t)
	fake.loginFail = true
	dir := t.TempDir()
	settingsPath := filepath.Join(dir, "insta_settings.json")
	p := newTestPublisher(t, fake, settingsPath)

	_, err := p.Publish(context.Background(), writePNG(t, dir), "post")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instagram login")
	assert.Empty(t, fake.uploads)
	assert.NoFileExists(t, settingsPath)
}

func TestPublish_RequiresImage(t *testing.T) {
	fake := newFakeInstagram(t)
	p := newTestPublisher(t, fake, filepath.Join(t.TempDir(), "s.json"))
	_, err := p.Publish(context.Background(), "", "post")
	assert.Error(t, err)
}
