package mandrill

import "strings"

// AllowedHeaders are copied verbatim into the document's "headers" object
// when present on the mail.
var AllowedHeaders = []string{
	"In-Reply-To",
	"Reply-To",
	"References",
	"X-MC-BccAddress",
	"X-MC-GoogleAnalytics",
	"X-MC-GoogleAnalyticsCampaign",
	"X-MC-Important",
	"X-MC-InlineCSS",
	"X-MC-IpPool",
	"X-MC-PreserveRecipients",
	"X-MC-ReturnPathDomain",
	"X-MC-SigningDomain",
	"X-MC-Subaccount",
	"X-MC-Track",
	"X-MC-TrackingDomain",
	"X-MC-URLStripQS",
	"X-MC-ViewContentLink",
}

// flagField maps a header onto a tri-state document field.
type flagField struct {
	header string
	set    func(*Document, *bool)
}

// stringField maps a header onto a nullable string document field.
type stringField struct {
	header string
	set    func(*Document, *string)
}

// Header names double as the document keys they populate.
var triStateFields = []flagField{
	{"auto_html", func(d *Document, v *bool) { d.AutoHTML = v }},
	{"auto_text", func(d *Document, v *bool) { d.AutoText = v }},
	{"inline_css", func(d *Document, v *bool) { d.InlineCSS = v }},
	{"merge", func(d *Document, v *bool) { d.Merge = v }},
	{"preserve_recipients", func(d *Document, v *bool) { d.PreserveRecipients = v }},
	{"track_clicks", func(d *Document, v *bool) { d.TrackClicks = v }},
	{"track_opens", func(d *Document, v *bool) { d.TrackOpens = v }},
	{"url_strip_qs", func(d *Document, v *bool) { d.URLStripQS = v }},
	{"view_content_link", func(d *Document, v *bool) { d.ViewContentLink = v }},
}

var stringFields = []stringField{
	{"bcc_address", func(d *Document, v *string) { d.BccAddress = v }},
	{"merge_language", func(d *Document, v *string) { d.MergeLanguage = v }},
	{"return_path_domain", func(d *Document, v *string) { d.ReturnPathDomain = v }},
	{"signing_domain", func(d *Document, v *string) { d.SigningDomain = v }},
	{"subaccount", func(d *Document, v *string) { d.Subaccount = v }},
	{"tracking_domain", func(d *Document, v *string) { d.TrackingDomain = v }},
}

// triState returns nil for an absent header, otherwise whether the value is
// exactly "true". Any other value, "TRUE" and "1" included, is false.
func triState(m Mail, name string) *bool {
	v, ok := m.Header(name)
	if !ok {
		return nil
	}
	b := v == "true"
	return &b
}

// passthrough returns nil for an absent header, otherwise its value as is.
func passthrough(m Mail, name string) *string {
	v, ok := m.Header(name)
	if !ok {
		return nil
	}
	return &v
}

// important is not tri-state: an absent header means false.
func important(m Mail) bool {
	v, _ := m.Header("important")
	return v == "true"
}

// harvestHeaders copies the allow-listed headers that are present.
func harvestHeaders(m Mail) map[string]string {
	out := make(map[string]string)
	for _, name := range AllowedHeaders {
		if v, ok := m.Header(name); ok {
			out[name] = v
		}
	}
	return out
}

// tagSeparator separates entries of the "tags" header.
const tagSeparator = ", "

// splitTags splits the tags header on ", ". Trailing empty fields are
// dropped, so an empty or absent header yields an empty list. With
// placeholder set, an empty input yields a single empty tag instead.
func splitTags(raw string, placeholder bool) []string {
	tags := strings.Split(raw, tagSeparator)
	for len(tags) > 0 && tags[len(tags)-1] == "" {
		tags = tags[:len(tags)-1]
	}
	if len(tags) == 0 && placeholder {
		return []string{""}
	}
	return tags
}
