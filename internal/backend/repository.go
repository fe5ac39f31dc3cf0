package backend

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"content-gate/internal/device"
	"content-gate/props"
)

// Repository builds the request from the device and app profile and
// performs the single backend call.
type Repository struct {
	client  *Client
	profile props.Profile
	device  *device.Provider
}

func NewRepository(client *Client, profile props.Profile, dev *device.Provider) *Repository {
	return &Repository{client: client, profile: profile, device: dev}
}

func (r *Repository) Params(ctx context.Context) (Params, error) {
	afID, err := r.device.InstallID(ctx)
	if err != nil {
		return Params{}, err
	}
	return Params{
		AfID:              afID,
		BundleID:          r.profile.BundleID,
		OS:                r.profile.OS,
		StoreID:           r.profile.StoreID,
		Locale:            r.device.Locale(),
		PushToken:         r.device.PushToken(ctx),
		FirebaseProjectID: r.profile.FirebaseProjectID,
		AdvertisingID:     r.device.AdvertisingID(),
	}, nil
}

// Fetch returns the content for the given conversion data, or ErrNoData.
func (r *Repository) Fetch(ctx context.Context, conversion map[string]any) (Content, error) {
	params, err := r.Params(ctx)
	if err != nil {
		return Content{}, fmt.Errorf("%w: params: %v", ErrNoData, err)
	}
	log.Debug().Str("af_id", params.AfID).Str("locale", params.Locale).Msg("fetching content")
	body, err := Body(params, conversion)
	if err != nil {
		return Content{}, fmt.Errorf("%w: encode: %v", ErrNoData, err)
	}
	return r.client.Post(ctx, body)
}
