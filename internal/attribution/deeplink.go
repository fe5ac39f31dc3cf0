package attribution

import (
	"fmt"
	"strconv"
)

// DeepLink is the payload of a resolved deep-link callback.
// Values carries raw string parameters such as timestamp and deep_link_sub1..10.
type DeepLink struct {
	DeepLinkValue     string            `json:"deep_link_value"`
	MediaSource       string            `json:"media_source"`
	Campaign          string            `json:"campaign"`
	CampaignID        string            `json:"campaign_id"`
	AfSub1            string            `json:"af_sub1"`
	AfSub2            string            `json:"af_sub2"`
	AfSub3            string            `json:"af_sub3"`
	AfSub4            string            `json:"af_sub4"`
	AfSub5            string            `json:"af_sub5"`
	MatchType         string            `json:"match_type"`
	ClickHTTPReferrer string            `json:"click_http_referrer"`
	IsDeferred        *bool             `json:"is_deferred"`
	Values            map[string]string `json:"values"`
}

const maxDeepLinkSubs = 10

// Extract flattens the deep link into the keys merged into conversion data.
// Empty fields are omitted.
func (d DeepLink) Extract() map[string]any {
	m := map[string]any{}
	put := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	put("deep_link_value", d.DeepLinkValue)
	put("media_source", d.MediaSource)
	put("campaign", d.Campaign)
	put("campaign_id", d.CampaignID)
	put("af_sub1", d.AfSub1)
	put("af_sub2", d.AfSub2)
	put("af_sub3", d.AfSub3)
	put("af_sub4", d.AfSub4)
	put("af_sub5", d.AfSub5)
	put("match_type", d.MatchType)
	put("click_http_referrer", d.ClickHTTPReferrer)
	put("timestamp", d.Values["timestamp"])
	if d.IsDeferred != nil {
		m["is_deferred"] = strconv.FormatBool(*d.IsDeferred)
	}
	for i := 1; i <= maxDeepLinkSubs; i++ {
		put(fmt.Sprintf("deep_link_sub%d", i), d.Values[fmt.Sprintf("deep_link_sub%d", i)])
	}
	return m
}

// Merge returns a new map holding conv plus every deep-link key conv lacks.
// Conversion values win on collision.
func Merge(conv, deep map[string]any) map[string]any {
	out := make(map[string]any, len(conv)+len(deep))
	for k, v := range conv {
		out[k] = v
	}
	for k, v := range deep {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out
}
