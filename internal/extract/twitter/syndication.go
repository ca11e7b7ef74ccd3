// SPDX-License-Identifier: MIT

package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/fetch"
)

// syndicationTweet is the tweet-result shape served by the syndication CDN.
// The same shape nests for quoted tweets.
type syndicationTweet struct {
	Typename  string `json:"__typename"`
	IDStr     string `json:"id_str"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
	User      struct {
		Name       string `json:"name"`
		ScreenName string `json:"screen_name"`
	} `json:"user"`
	FavoriteCount     int64 `json:"favorite_count"`
	ConversationCount int64 `json:"conversation_count"`
	ExtendedEntities  struct {
		Media []mediaEntity `json:"media"`
	} `json:"extended_entities"`
	MediaDetails []mediaEntity     `json:"mediaDetails"`
	QuotedTweet  *syndicationTweet `json:"quoted_tweet"`
}

// fetchSyndication is the guest tier: one GET against the public
// syndication CDN, no credentials involved.
func (e *Extractor) fetchSyndication(ctx context.Context, id string) (*tweetData, error) {
	endpoint := fmt.Sprintf("%s?id=%s&token=0", e.syndicationURL, id)
	resp, err := e.client.FetchText(ctx, endpoint, fetch.Options{
		Headers: map[string]string{"Accept": "application/json"},
	})
	if err != nil {
		if errs.UpstreamStatusOf(err) == http.StatusNotFound {
			// The CDN answers 404 for protected and for deleted tweets
			// alike; a credentialed tier can still tell them apart.
			return nil, errs.Wrap(err, errs.CodePrivateContent, "tweet unavailable, may be protected or deleted")
		}
		return nil, err
	}
	if len(resp.Data) == 0 || resp.Data == "{}" {
		return nil, errs.E(errs.CodePrivateContent, "tweet unavailable, may be protected or deleted")
	}

	var st syndicationTweet
	if err := json.Unmarshal([]byte(resp.Data), &st); err != nil {
		return nil, errs.Wrap(err, errs.CodeExtractionFailed, "unreadable syndication payload")
	}
	if st.Typename == "TweetTombstone" {
		return nil, errs.E(errs.CodeDeletedContent, "tweet has been removed")
	}
	if st.User.ScreenName == "" {
		return nil, errs.E(errs.CodeDeletedContent, "tweet author unavailable")
	}
	return syndicationToData(&st), nil
}

func syndicationToData(st *syndicationTweet) *tweetData {
	if st == nil {
		return nil
	}
	media := st.ExtendedEntities.Media
	if len(media) == 0 {
		media = st.MediaDetails
	}
	td := &tweetData{
		ID:         st.IDStr,
		Text:       st.Text,
		CreatedAt:  parseCreatedAt(st.CreatedAt),
		Name:       st.User.Name,
		ScreenName: st.User.ScreenName,
		Likes:      st.FavoriteCount,
		Replies:    st.ConversationCount,
		Media:      media,
		Quoted:     syndicationToData(st.QuotedTweet),
	}
	return td
}
