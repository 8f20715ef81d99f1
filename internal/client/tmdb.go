package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// StatusError is a non-200 reply from TMDB. Handlers branch on the code to
// decide what to surface to the client.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("TMDB returned status %d: %s", e.StatusCode, e.Body)
}

// TMDBClient proxies the themoviedb.org v3 API.
type TMDBClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewTMDBClient(baseURL, apiKey string) *TMDBClient {
	return &TMDBClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *TMDBClient) SearchMovies(query string, page int) (map[string]interface{}, error) {
	params := url.Values{}
	params.Set("query", query)
	return c.callEndpoint("/search/movie", page, params)
}

func (c *TMDBClient) Popular(page int) (map[string]interface{}, error) {
	return c.callEndpoint("/movie/popular", page, nil)
}

func (c *TMDBClient) TopRated(page int) (map[string]interface{}, error) {
	return c.callEndpoint("/movie/top_rated", page, nil)
}

func (c *TMDBClient) NowPlaying(page int) (map[string]interface{}, error) {
	return c.callEndpoint("/movie/now_playing", page, nil)
}

func (c *TMDBClient) MovieDetails(tmdbID int64) (map[string]interface{}, error) {
	params := url.Values{}
	params.Set("append_to_response", "credits,videos")
	return c.callEndpoint("/movie/"+strconv.FormatInt(tmdbID, 10), 0, params)
}

func (c *TMDBClient) Genres() (map[string]interface{}, error) {
	return c.callEndpoint("/genre/movie/list", 0, nil)
}

func (c *TMDBClient) callEndpoint(endpoint string, page int, params url.Values) (map[string]interface{}, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}

	resp, err := c.httpClient.Get(c.baseURL + endpoint + "?" + params.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return result, nil
}
