package archive

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// marshalImages wraps a single entry into a provider response body.
func marshalImages(t *testing.T, entry map[string]any) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{"images": []any{entry}})
	require.NoError(t, err)
	return body
}

func TestParseURLBase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw        string
		wantSuffix string
		wantName   string
	}{
		{
			raw:        "/az/hprichbg/rb/PineBough_ROW6233127332",
			wantSuffix: "PineBough_ROW6233127332",
			wantName:   "PineBough",
		},
		{
			raw:        "/az/hprichbg/rb/FlowerFes__JA-JP2679822467",
			wantSuffix: "FlowerFes__JA-JP2679822467",
			wantName:   "FlowerFes_",
		},
		{
			raw:        "/th?id=OHR.PingxiSky_EN-GB0458915063",
			wantSuffix: "PingxiSky_EN-GB0458915063",
			wantName:   "PingxiSky",
		},
	}

	for _, tt := range tests {
		suffix, name, err := ParseURLBase(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.wantSuffix, suffix, tt.raw)
		assert.Equal(t, tt.wantName, name, tt.raw)
	}
}

func TestParseURLBaseRejectsOtherShapes(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"",
		"/az/hprichbg/rb/PineBough",
		"/az/hprichbg/rb/PineBough_row6233127332",
		"/th?id=OHR.PingxiSky_ENGB0458915063",
	} {
		_, _, err := ParseURLBase(raw)
		require.Error(t, err, raw)
		assert.Equal(t, KindInvalidInput, KindOf(err), raw)
	}
}

func TestParseCopyright(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw             string
		wantDescription string
		wantAttribution string
	}{
		{
			raw: "Un ourson noir dans un pin, Parc national Jasper, Alberta" +
				" (Ursus americanus) (© Donald M. Jones/Minden Pictures)",
			wantDescription: "Un ourson noir dans un pin, Parc national Jasper, Alberta (Ursus americanus)",
			wantAttribution: "Donald M. Jones/Minden Pictures",
		},
		{
			raw:             "来自人工智能的画作《思念》（© 微软小冰）",
			wantDescription: "来自人工智能的画作《思念》",
			wantAttribution: "微软小冰",
		},
		{
			raw:             "｢国立科学博物館｣東京, 台東区（©　WindAwake/Shutterstock）",
			wantDescription: "｢国立科学博物館｣東京, 台東区",
			wantAttribution: "WindAwake/Shutterstock",
		},
	}

	for _, tt := range tests {
		description, attribution, err := ParseCopyright(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.wantDescription, description, tt.raw)
		assert.Equal(t, tt.wantAttribution, attribution, tt.raw)
	}
}

func TestParseCopyrightRejectsMissingGlyph(t *testing.T) {
	t.Parallel()

	_, _, err := ParseCopyright("A lake somewhere (Getty Images)")
	require.Error(t, err)
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestExtractKeyword(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want string
		ok   bool
	}{
		{url: "javascript:void(0);"},
		{url: "http://www.msxiaona.cn/"},
		{url: "https://bingdict.chinacloudsites.cn/download?tag=BDPDV"},
		{
			url:  "http://www.bing.com/search?q=%E5%BC%80%E6%99%AE%E6%A2%85%E8%8E%BA",
			want: "开普梅莺",
			ok:   true,
		},
		{
			url:  "https://www.baidu.com/s?q=&wd=%E5%8D%8E%E4%B8%BA",
			want: "华为",
			ok:   true,
		},
	}

	for _, tt := range tests {
		got, ok := ExtractKeyword(tt.url)
		assert.Equal(t, tt.ok, ok, tt.url)
		assert.Equal(t, tt.want, got, tt.url)
	}
}

const validResponseBody = `{
  "images": [
    {
      "fullstartdate": "201905221600",
      "urlbase": "/az/hprichbg/rb/PingxiSky_ZH-CN0458915063",
      "copyright": "平溪放天灯（© Wan Ru Chen/Getty Images）",
      "copyrightlink": "http://www.bing.com/search?q=%E5%B9%B3%E6%BA%AA",
      "wp": false,
      "hs": [],
      "msg": []
    }
  ]
}`

func TestParseResponse(t *testing.T) {
	t.Parallel()

	rec, err := ParseResponse([]byte(validResponseBody), "zh-CN")
	require.NoError(t, err)

	assert.Equal(t, "zh-CN", rec.Market)
	assert.Equal(t, "2019-05-23 00:00:00 +08:00", rec.Date.Format("2006-01-02 15:04:05 -07:00"))
	assert.Equal(t, "平溪放天灯", rec.Description)
	assert.Equal(t, "http://www.bing.com/search?q=%E5%B9%B3%E6%BA%AA", rec.Link)
	assert.Equal(t, "PingxiSky", rec.Image.Name)
	assert.Equal(t, "/az/hprichbg/rb/PingxiSky_ZH-CN0458915063", rec.Image.URLBase)
	assert.Equal(t, "Wan Ru Chen/Getty Images", rec.Image.Copyright)
	assert.False(t, rec.Image.HighRes)
	assert.Nil(t, rec.Hotspots, "empty hs array is treated as absent")
	assert.Nil(t, rec.Messages, "empty msg array is treated as absent")
	assert.Nil(t, rec.Image.Video)
}

func TestParseResponseThumbnailForm(t *testing.T) {
	t.Parallel()

	body := `{"images":[{
		"fullstartdate": "201905230700",
		"urlbase": "/th?id=OHR.PingxiSky_EN-US0458915063",
		"copyright": "Sky lanterns (© Wan Ru Chen/Getty Images)",
		"copyrightlink": "javascript:void(0)",
		"wp": true,
		"vid": {"sources": [["mp4", "https://example.com/v.mp4"]]}
	}]}`

	rec, err := ParseResponse([]byte(body), "en-US")
	require.NoError(t, err)

	// The thumbnail-query form re-roots to the canonical archive path.
	assert.Equal(t, "/az/hprichbg/rb/PingxiSky_EN-US0458915063", rec.Image.URLBase)
	assert.Empty(t, rec.Link, "sentinel copyright link is omitted")
	assert.True(t, rec.Image.HighRes)
	assert.NotNil(t, rec.Image.Video)
}

func TestParseResponseRequiredFields(t *testing.T) {
	t.Parallel()

	template := map[string]any{
		"fullstartdate": "201905221600",
		"urlbase":       "/az/hprichbg/rb/PineBough_ROW6233127332",
		"copyright":     "Pine bough (© Someone/Somewhere)",
		"copyrightlink": "https://www.bing.com/search?q=pine",
		"wp":            true,
	}

	for _, field := range []string{"fullstartdate", "urlbase", "copyright", "copyrightlink", "wp"} {
		t.Run(field, func(t *testing.T) {
			t.Parallel()
			entry := make(map[string]any, len(template))
			for k, v := range template {
				if k != field {
					entry[k] = v
				}
			}
			_, err := ParseResponse(marshalImages(t, entry), "en-US")
			require.Error(t, err)
			assert.Equal(t, KindValidation, KindOf(err))
			assert.Contains(t, err.Error(), field)
		})
	}
}

func TestParseResponseFalseWPIsPresent(t *testing.T) {
	t.Parallel()

	entry := map[string]any{
		"fullstartdate": "201905221600",
		"urlbase":       "/az/hprichbg/rb/PineBough_ROW6233127332",
		"copyright":     "Pine bough (© Someone/Somewhere)",
		"copyrightlink": "https://www.bing.com/search?q=pine",
		"wp":            false,
	}
	rec, err := ParseResponse(marshalImages(t, entry), "en-US")
	require.NoError(t, err)
	assert.False(t, rec.Image.HighRes)
}

func TestParseResponseInvalidCopyrightLink(t *testing.T) {
	t.Parallel()

	entry := map[string]any{
		"fullstartdate": "201905221600",
		"urlbase":       "/az/hprichbg/rb/PineBough_ROW6233127332",
		"copyright":     "Pine bough (© Someone/Somewhere)",
		"copyrightlink": "not a url",
		"wp":            true,
	}
	_, err := ParseResponse(marshalImages(t, entry), "en-US")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestParseResponseEmptyOrMalformed(t *testing.T) {
	t.Parallel()

	for name, body := range map[string]string{
		"malformed": `{"images": [`,
		"no images": `{}`,
		"empty":     `{"images": []}`,
	} {
		_, err := ParseResponse([]byte(body), "en-US")
		require.Error(t, err, name)
		assert.Equal(t, KindEmptyResponse, KindOf(err), name)
	}
}
