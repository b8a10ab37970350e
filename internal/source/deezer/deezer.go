// Package deezer implements the Deezer source: private-API token
// acquisition, public-API search/URL resolution, and the per-track
// chunk-stripe cipher key derivation.
package deezer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/wavelink/wavelink/internal/codec"
	"github.com/wavelink/wavelink/internal/model"
	"github.com/wavelink/wavelink/internal/seek"
	"github.com/wavelink/wavelink/internal/source"
)

const Name = "deezer"

const (
	publicAPIBase  = "https://api.deezer.com/2.0"
	privateAPIBase = "https://www.deezer.com/ajax/gw-light.php"
	mediaBase      = "https://media.deezer.com/v1"
)

const tokenTTL = 3600 * time.Second

var urlRe = regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?deezer\.com/(?:[a-z]{2}/)?(track|album|playlist|artist)/([0-9]+)`)

const (
	searchPrefix = "dzsearch:"
	isrcPrefix   = "dzisrc:"
	recPrefix    = "dzrec:"
)

// Source implements source.Source for Deezer.
type Source struct {
	client    *resty.Client
	arl       string
	secretKey []byte // exactly 16 bytes

	mu     sync.Mutex
	tokens *tokens
}

type tokens struct {
	sessionID    string
	uniqueID     string
	checkForm    string
	licenseToken string
	expireAt     time.Time
}

func (t tokens) cookie(arl string) string {
	return fmt.Sprintf("arl=%s; %s; %s", arl, t.sessionID, t.uniqueID)
}

// New builds a Deezer source. arl is the account session cookie value;
// secretKeyHex is the 16-byte chunk-cipher secret, hex encoded.
func New(client *resty.Client, arl, secretKeyHex string) (*Source, error) {
	key, err := hex.DecodeString(secretKeyHex)
	if err != nil {
		return nil, fmt.Errorf("deezer: decode secret key: %w", err)
	}
	if len(key) != 16 {
		return nil, errors.New("deezer: secret key must decode to exactly 16 bytes")
	}
	return &Source{client: client, arl: arl, secretKey: key}, nil
}

func (s *Source) Name() string { return Name }

func (s *Source) ParseQuery(text string) (source.Query, bool) {
	if urlRe.MatchString(text) {
		return source.Query{Kind: source.QueryURL, Value: text}, true
	}
	switch {
	case strings.HasPrefix(text, searchPrefix), strings.HasPrefix(text, isrcPrefix), strings.HasPrefix(text, recPrefix):
		return source.Query{Kind: source.QuerySearch, Value: text}, true
	}
	return source.Query{}, false
}

func (s *Source) Resolve(ctx context.Context, q source.Query) (source.TrackResult, error) {
	if q.Kind == source.QueryURL {
		return s.resolveURL(ctx, q.Value)
	}
	return s.resolveSearch(ctx, q.Value)
}

func (s *Source) resolveSearch(ctx context.Context, text string) (source.TrackResult, error) {
	switch {
	case strings.HasPrefix(text, searchPrefix):
		term := strings.TrimPrefix(text, searchPrefix)
		return s.publicSearch(ctx, term)
	case strings.HasPrefix(text, isrcPrefix):
		isrc := strings.TrimPrefix(text, isrcPrefix)
		return s.publicISRCLookup(ctx, isrc)
	case strings.HasPrefix(text, recPrefix):
		// Reserved for a recommendation feed; no public endpoint backs
		// it today. Explicit empty, never a panic.
		return source.Empty(), nil
	}
	return source.Empty(), nil
}

func (s *Source) resolveURL(ctx context.Context, text string) (source.TrackResult, error) {
	m := urlRe.FindStringSubmatch(text)
	if m == nil {
		return source.Empty(), nil
	}
	kind, id := m[1], m[2]
	switch kind {
	case "track":
		return s.publicTrack(ctx, id)
	case "album":
		return s.publicAlbum(ctx, id)
	case "playlist":
		return s.publicPlaylist(ctx, id)
	case "artist":
		// Supplemented: an artist link resolves to that artist's top
		// tracks, presented as a Search result.
		return s.publicArtistTop(ctx, id)
	}
	return source.Empty(), nil
}

type apiArtist struct {
	Name string `json:"name"`
}

type apiAlbum struct {
	Title     string `json:"title"`
	Thumbnail string `json:"cover_medium"`
}

type apiTrack struct {
	ID       int64    `json:"id"`
	Readable bool     `json:"readable"`
	Title    string   `json:"title"`
	Link     string   `json:"link"`
	Duration int64    `json:"duration"`
	ISRC     string   `json:"isrc"`
	Artist   apiArtist `json:"artist"`
	Album    apiAlbum  `json:"album"`
}

type apiDataList struct {
	Data []apiTrack `json:"data"`
}

type apiAlbumResponse struct {
	Title  string      `json:"title"`
	Cover  string      `json:"cover_medium"`
	Tracks apiDataList `json:"tracks"`
}

type apiPlaylistResponse struct {
	Title  string      `json:"title"`
	Tracks apiDataList `json:"tracks"`
}

func (s *Source) publicSearch(ctx context.Context, term string) (source.TrackResult, error) {
	var result apiDataList
	resp, err := s.client.R().SetContext(ctx).
		SetQueryParam("q", term).
		SetResult(&result).
		Get(publicAPIBase + "/search")
	if err != nil {
		return source.TrackResult{}, fmt.Errorf("deezer: search: %w", err)
	}
	if resp.IsError() {
		return source.Empty(), nil
	}
	return source.Search(tracksToModel(s.Name(), result.Data)), nil
}

func (s *Source) publicISRCLookup(ctx context.Context, isrc string) (source.TrackResult, error) {
	var t apiTrack
	resp, err := s.client.R().SetContext(ctx).SetResult(&t).
		Get(publicAPIBase + "/track/isrc:" + isrc)
	if err != nil {
		return source.TrackResult{}, fmt.Errorf("deezer: isrc lookup: %w", err)
	}
	if resp.IsError() || !t.Readable {
		return source.Empty(), nil
	}
	tracks := tracksToModel(s.Name(), []apiTrack{t})
	if len(tracks) == 0 {
		return source.Empty(), nil
	}
	return source.OneTrack(tracks[0]), nil
}

func (s *Source) publicTrack(ctx context.Context, id string) (source.TrackResult, error) {
	var t apiTrack
	resp, err := s.client.R().SetContext(ctx).SetResult(&t).
		Get(publicAPIBase + "/track/" + id)
	if err != nil {
		return source.TrackResult{}, fmt.Errorf("deezer: get track: %w", err)
	}
	if resp.IsError() || !t.Readable {
		return source.Empty(), nil
	}
	tracks := tracksToModel(s.Name(), []apiTrack{t})
	if len(tracks) == 0 {
		return source.Empty(), nil
	}
	return source.OneTrack(tracks[0]), nil
}

func (s *Source) publicAlbum(ctx context.Context, id string) (source.TrackResult, error) {
	var album apiAlbumResponse
	resp, err := s.client.R().SetContext(ctx).SetResult(&album).
		Get(publicAPIBase + "/album/" + id)
	if err != nil {
		return source.TrackResult{}, fmt.Errorf("deezer: get album: %w", err)
	}
	if resp.IsError() {
		return source.Empty(), nil
	}
	tracks := tracksToModel(s.Name(), album.Tracks.Data)
	if len(tracks) == 0 {
		return source.Empty(), nil
	}
	return source.Playlist(model.TrackPlaylist{
		Info:       model.PlaylistInfo{Name: album.Title, SelectedTrack: -1},
		PluginInfo: map[string]any{},
		Tracks:     tracks,
	}), nil
}

func (s *Source) publicPlaylist(ctx context.Context, id string) (source.TrackResult, error) {
	var playlist apiPlaylistResponse
	resp, err := s.client.R().SetContext(ctx).SetResult(&playlist).
		Get(publicAPIBase + "/playlist/" + id)
	if err != nil {
		return source.TrackResult{}, fmt.Errorf("deezer: get playlist: %w", err)
	}
	if resp.IsError() {
		return source.Empty(), nil
	}
	tracks := tracksToModel(s.Name(), playlist.Tracks.Data)
	if len(tracks) == 0 {
		return source.Empty(), nil
	}
	return source.Playlist(model.TrackPlaylist{
		Info:       model.PlaylistInfo{Name: playlist.Title, SelectedTrack: -1},
		PluginInfo: map[string]any{},
		Tracks:     tracks,
	}), nil
}

func (s *Source) publicArtistTop(ctx context.Context, id string) (source.TrackResult, error) {
	var result apiDataList
	resp, err := s.client.R().SetContext(ctx).SetResult(&result).
		SetQueryParam("limit", "20").
		Get(publicAPIBase + "/artist/" + id + "/top")
	if err != nil {
		return source.TrackResult{}, fmt.Errorf("deezer: artist top: %w", err)
	}
	if resp.IsError() {
		return source.Empty(), nil
	}
	return source.Search(tracksToModel(s.Name(), result.Data)), nil
}

func tracksToModel(sourceName string, in []apiTrack) []model.Track {
	out := make([]model.Track, 0, len(in))
	for _, t := range in {
		if !t.Readable {
			continue
		}
		info := model.TrackInfo{
			Identifier: strconv.FormatInt(t.ID, 10),
			IsSeekable: true,
			Author:     t.Artist.Name,
			Length:     t.Duration * 1000,
			Title:      t.Title,
			URI:        t.Link,
			ArtworkURL: t.Album.Thumbnail,
			ISRC:       t.ISRC,
			SourceName: sourceName,
		}
		encoded, err := codec.Encode(info)
		if err != nil {
			continue
		}
		out = append(out, model.Track{Encoded: encoded, Info: info, PluginInfo: map[string]any{}})
	}
	return out
}

// getTokens returns cached tokens when still within their TTL, otherwise
// refreshes under a mutex so at most one refresh is ever in flight.
func (s *Source) getTokens(ctx context.Context) (tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tokens != nil && time.Now().Before(s.tokens.expireAt) {
		return *s.tokens, nil
	}

	var body struct {
		Results struct {
			CheckForm string `json:"checkForm"`
			User      struct {
				Options struct {
					LicenseToken string `json:"license_token"`
				} `json:"OPTIONS"`
			} `json:"USER"`
		} `json:"results"`
	}

	resp, err := s.client.R().SetContext(ctx).
		SetHeader("Cookie", "arl="+s.arl).
		SetQueryParams(map[string]string{
			"method":      "deezer.getUserData",
			"input":       "3",
			"api_version": "1.0",
			"api_token":   "",
		}).
		SetResult(&body).
		Post(privateAPIBase)
	if err != nil {
		return tokens{}, fmt.Errorf("deezer: getUserData: %w", err)
	}
	if resp.IsError() {
		return tokens{}, fmt.Errorf("deezer: getUserData status %s", resp.Status())
	}

	var sessionID, uniqueID string
	for _, c := range resp.Cookies() {
		switch c.Name {
		case "sid":
			sessionID = "sid=" + c.Value
		case "dzr_uniq_id":
			uniqueID = "dzr_uniq_id=" + c.Value
		}
	}
	if sessionID == "" || uniqueID == "" {
		return tokens{}, errors.New("deezer: getUserData response missing session cookies")
	}

	tok := tokens{
		sessionID:    sessionID,
		uniqueID:     uniqueID,
		checkForm:    body.Results.CheckForm,
		licenseToken: body.Results.User.Options.LicenseToken,
		expireAt:     time.Now().Add(tokenTTL),
	}
	s.tokens = &tok
	return tok, nil
}

type songDataResult struct {
	SNGID           string `json:"SNG_ID"`
	TrackToken      string `json:"TRACK_TOKEN"`
	FilesizeFLAC    string `json:"FILESIZE_FLAC"`
	FilesizeMP3320  string `json:"FILESIZE_MP3_320"`
	FilesizeMP3256  string `json:"FILESIZE_MP3_256"`
	FilesizeMP3128  string `json:"FILESIZE_MP3_128"`
}

func pickFormat(d songDataResult) string {
	nonZero := func(s string) bool {
		n, err := strconv.ParseInt(s, 10, 64)
		return err == nil && n > 0
	}
	switch {
	case nonZero(d.FilesizeFLAC):
		return "FLAC"
	case nonZero(d.FilesizeMP3320):
		return "MP3_320"
	case nonZero(d.FilesizeMP3256):
		return "MP3_256"
	default:
		return "MP3_128"
	}
}

func (s *Source) MakePlayable(ctx context.Context, info model.TrackInfo) (source.Stream, error) {
	tok, err := s.getTokens(ctx)
	if err != nil {
		return source.Stream{}, err
	}

	var songBody struct {
		Results songDataResult `json:"results"`
	}
	resp, err := s.client.R().SetContext(ctx).
		SetHeader("Cookie", tok.cookie(s.arl)).
		SetQueryParams(map[string]string{
			"method":      "song.getData",
			"input":       "3",
			"api_version": "1.0",
			"api_token":   tok.checkForm,
		}).
		SetBody(map[string]string{"SNG_ID": info.Identifier}).
		SetResult(&songBody).
		Post(privateAPIBase)
	if err != nil {
		return source.Stream{}, fmt.Errorf("deezer: song.getData: %w", err)
	}
	if resp.IsError() {
		return source.Stream{}, fmt.Errorf("deezer: song.getData status %s", resp.Status())
	}

	format := pickFormat(songBody.Results)

	var mediaBody struct {
		Data []struct {
			Media []struct {
				Sources []struct {
					URL string `json:"url"`
				} `json:"sources"`
			} `json:"media"`
		} `json:"data"`
	}
	resp, err = s.client.R().SetContext(ctx).
		SetHeader("Cookie", tok.cookie(s.arl)).
		SetBody(map[string]any{
			"license_token": tok.licenseToken,
			"media": []map[string]any{{
				"type": "FULL",
				"formats": []map[string]string{{
					"cipher": "BF_CBC_STRIPE",
					"format": format,
				}},
			}},
			"track_tokens": []string{songBody.Results.TrackToken},
		}).
		SetResult(&mediaBody).
		Post(mediaBase + "/get_url")
	if err != nil {
		return source.Stream{}, fmt.Errorf("deezer: media/get_url: %w", err)
	}
	if resp.IsError() {
		return source.Stream{}, fmt.Errorf("deezer: media/get_url status %s", resp.Status())
	}
	if len(mediaBody.Data) == 0 || len(mediaBody.Data[0].Media) == 0 || len(mediaBody.Data[0].Media[0].Sources) == 0 {
		return source.Stream{}, errors.New("deezer: media/get_url returned no sources")
	}
	mediaURL := mediaBody.Data[0].Media[0].Sources[0].URL

	key := trackKey(info.Identifier, s.secretKey)

	open := func(offset int64) (*resty.Response, error) {
		req := s.client.R().SetContext(ctx).SetDoNotParseResponse(true)
		if offset > 0 {
			req.SetHeader("Range", fmt.Sprintf("bytes=%d-", offset))
		}
		return req.Get(mediaURL)
	}
	first, err := open(0)
	if err != nil {
		return source.Stream{}, fmt.Errorf("deezer: open media stream: %w", err)
	}

	totalLen := int64(-1)
	if cl := first.Header().Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			totalLen = n
		}
	}

	reopen := func(offset int64) (io.ReadCloser, error) {
		r, err := open(offset)
		if err != nil {
			return nil, err
		}
		return r.RawBody(), nil
	}

	src := seek.New(first.RawBody(), totalLen, seek.CipherChunkSize, key[:], reopen)

	return source.Stream{Reader: src, MimeType: "audio/x-flac"}, nil
}

func trackKey(id string, secretKey []byte) [16]byte {
	sum := md5.Sum([]byte(id))
	hexDigest := hex.EncodeToString(sum[:])
	var key [16]byte
	for i := 0; i < 16; i++ {
		key[i] = hexDigest[i] ^ hexDigest[i+16] ^ secretKey[i]
	}
	return key
}
