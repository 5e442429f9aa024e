package handler

import (
	"bytes"
	"engage/config"
	"engage/dep"
	"engage/entity"
	"engage/pkg/router"
	"net/url"
	"strings"
)

const (
	defaultCTA = "Shop now"
	productCTA = "View product"
)

type notificationEmailData struct {
	SenderName    string
	RecipientName string
	Title         string
	Body          string
	CTA           string
	ClickURL      string
	PixelURL      string
}

// OpenPixelURL is the tracking pixel embedded in the email for notification nid.
func OpenPixelURL(baseURL, nid string) string {
	q := url.Values{}
	q.Set("nid", nid)
	return trackingURL(baseURL, config.PathTrackOpen, q)
}

// ClickURL routes dest through the click tracker for notification nid.
// An empty dest lets the tracker fall back to the default site URL.
func ClickURL(baseURL, nid, dest string) string {
	q := url.Values{}
	q.Set("nid", nid)
	if dest != "" {
		q.Set("url", dest)
	}
	return trackingURL(baseURL, config.PathTrackClick, q)
}

func trackingURL(baseURL, path string, q url.Values) string {
	return strings.TrimRight(baseURL, "/") + router.AppBasePath + path + "?" + q.Encode()
}

// composeEmail renders the notification email for one recipient.
func composeEmail(cfg *config.Config, n *entity.Notification, user *entity.User) (*dep.Email, error) {
	cta := defaultCTA
	if n.GetProductID() != 0 {
		cta = productCTA
	}

	data := &notificationEmailData{
		SenderName:    cfg.Sender.Name,
		RecipientName: user.GetDisplayName(),
		Title:         n.GetTitle(),
		Body:          n.GetBody(),
		CTA:           cta,
		ClickURL:      ClickURL(cfg.Tracking.BaseURL, n.GetID(), n.GetLink()),
		PixelURL:      OpenPixelURL(cfg.Tracking.BaseURL, n.GetID()),
	}

	var buf bytes.Buffer
	if err := notificationTmpl.Execute(&buf, data); err != nil {
		return nil, err
	}

	return &dep.Email{
		From: &dep.Sender{
			Email: cfg.Sender.Email,
			Name:  cfg.Sender.Name,
		},
		To: &dep.Receiver{
			Email: user.GetEmail(),
			Name:  user.GetDisplayName(),
		},
		Subject:     n.GetTitle(),
		HtmlContent: buf.String(),
		Tags:        []string{n.GetID()},
	}, nil
}
