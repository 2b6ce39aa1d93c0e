package endpoint

import (
	"errors"
	"net/url"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := New(Config{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func TestNew_MissingCredential(t *testing.T) {
	for _, key := range []string{"", "   ", "\t\n"} {
		r, err := New(Config{APIKey: key})
		if !errors.Is(err, ErrMissingCredential) {
			t.Errorf("New(%q) error = %v, want ErrMissingCredential", key, err)
		}
		if r != nil {
			t.Errorf("New(%q) returned a resolver alongside an error", key)
		}
	}
}

func TestNew_BaseURL(t *testing.T) {
	r, err := New(Config{APIKey: "k", BaseURL: "http://localhost:8080/3/"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	got := r.Genres().URL()
	want := "http://localhost:8080/3/genre/movie/list?api_key=k"
	if got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}

	r = newTestResolver(t)
	if got := r.Genres().URL(); got != DefaultBaseURL+"/genre/movie/list?api_key=test-key" {
		t.Errorf("default URL() = %q", got)
	}
}

func TestMovies(t *testing.T) {
	r := newTestResolver(t)

	testCases := []struct {
		name      string
		sel       Selector
		page      int
		wantPath  string
		wantQuery url.Values
	}{
		{"search", SearchText("dune"), 1, "/search/movie", url.Values{"query": {"dune"}, "page": {"1"}}},
		{"category", CategoryName("top_rated"), 2, "/movie/top_rated", url.Values{"page": {"2"}}},
		{"genre", GenreID(28), 1, "/discover/movie", url.Values{"with_genres": {"28"}, "page": {"1"}}},
		{"none", nil, 3, "/movie/popular", url.Values{"page": {"3"}}},
		// Empty selectors fall through to the default listing.
		{"empty search", SearchText(""), 1, "/movie/popular", url.Values{"page": {"1"}}},
		{"empty category", CategoryName(""), 1, "/movie/popular", url.Values{"page": {"1"}}},
		{"zero genre", GenreID(0), 1, "/movie/popular", url.Values{"page": {"1"}}},
		// Page is never clamped.
		{"page zero", nil, 0, "/movie/popular", url.Values{"page": {"0"}}},
		{"page negative", CategoryName("upcoming"), -4, "/movie/upcoming", url.Values{"page": {"-4"}}},
		{"page huge", SearchText("x"), 100000, "/search/movie", url.Values{"query": {"x"}, "page": {"100000"}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := r.Movies(tc.sel, tc.page)
			if got.Path != tc.wantPath {
				t.Errorf("Path = %q, want %q", got.Path, tc.wantPath)
			}
			if diff := cmp.Diff(tc.wantQuery, got.Query); diff != "" {
				t.Errorf("Query mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMovieListQuery_Precedence(t *testing.T) {
	r := newTestResolver(t)

	testCases := []struct {
		name     string
		query    MovieListQuery
		wantSel  Selector
		wantPath string
	}{
		{"search beats everything", MovieListQuery{Search: "alien", Category: "top_rated", Genre: 28, Page: 1}, SearchText("alien"), "/search/movie"},
		{"search beats category", MovieListQuery{Search: "alien", Category: "top_rated", Page: 1}, SearchText("alien"), "/search/movie"},
		{"search beats genre", MovieListQuery{Search: "alien", Genre: 28, Page: 1}, SearchText("alien"), "/search/movie"},
		{"category beats genre", MovieListQuery{Category: "now_playing", Genre: 28, Page: 1}, CategoryName("now_playing"), "/movie/now_playing"},
		{"genre alone", MovieListQuery{Genre: 35, Page: 1}, GenreID(35), "/discover/movie"},
		{"nothing", MovieListQuery{Page: 1}, nil, "/movie/popular"},
		{"empty strings fall through to genre", MovieListQuery{Search: "", Category: "", Genre: 12, Page: 1}, GenreID(12), "/discover/movie"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.query.Selector(); got != tc.wantSel {
				t.Errorf("Selector() = %#v, want %#v", got, tc.wantSel)
			}
			if got := r.ResolveMovies(tc.query).Path; got != tc.wantPath {
				t.Errorf("Path = %q, want %q", got, tc.wantPath)
			}
		})
	}
}

func TestMovies_PopularKeepsPage(t *testing.T) {
	r := newTestResolver(t)
	for page := 1; page <= 500; page += 37 {
		got := r.Movies(nil, page)
		if got.Path != "/movie/popular" {
			t.Fatalf("page %d: Path = %q", page, got.Path)
		}
		if got.Query.Get("page") != strconv.Itoa(page) {
			t.Fatalf("page %d: page param = %q", page, got.Query.Get("page"))
		}
		if len(got.Query) != 1 {
			t.Fatalf("page %d: unexpected params %v", page, got.Query)
		}
	}
}

func TestMovieDetail(t *testing.T) {
	r := newTestResolver(t)

	got, err := r.MovieDetail("550")
	if err != nil {
		t.Fatalf("MovieDetail() error = %v", err)
	}
	if got.Path != "/movie/550" {
		t.Errorf("Path = %q, want /movie/550", got.Path)
	}
	if v := got.Query.Get("append_to_response"); v != "videos,credits" {
		t.Errorf("append_to_response = %q, want videos,credits", v)
	}

	if _, err := r.MovieDetail(""); !errors.Is(err, ErrMissingIdentifier) {
		t.Errorf("MovieDetail(\"\") error = %v, want ErrMissingIdentifier", err)
	}
}

func TestRecommendations(t *testing.T) {
	r := newTestResolver(t)

	testCases := []struct {
		movieID  string
		kind     string
		wantPath string
	}{
		{"550", ListRecommendations, "/movie/550/recommendations"},
		{"550", ListSimilar, "/movie/550/similar"},
		{"550", "", "/movie/550/recommendations"},
		// Unknown kinds are forwarded; upstream decides.
		{"550", "bogus", "/movie/550/bogus"},
	}
	for _, tc := range testCases {
		got, err := r.Recommendations(tc.movieID, tc.kind)
		if err != nil {
			t.Fatalf("Recommendations(%q, %q) error = %v", tc.movieID, tc.kind, err)
		}
		if got.Path != tc.wantPath {
			t.Errorf("Recommendations(%q, %q) Path = %q, want %q", tc.movieID, tc.kind, got.Path, tc.wantPath)
		}
		if len(got.Query) != 0 {
			t.Errorf("unexpected params %v", got.Query)
		}
	}

	if _, err := r.Recommendations("", ListSimilar); !errors.Is(err, ErrMissingIdentifier) {
		t.Errorf("error = %v, want ErrMissingIdentifier", err)
	}
}

func TestActorEndpoints(t *testing.T) {
	r := newTestResolver(t)

	got, err := r.ActorDetail("287")
	if err != nil {
		t.Fatalf("ActorDetail() error = %v", err)
	}
	if got.Path != "/person/287" || len(got.Query) != 0 {
		t.Errorf("ActorDetail() = %s", got)
	}

	got, err = r.MoviesByActor("287", 2)
	if err != nil {
		t.Fatalf("MoviesByActor() error = %v", err)
	}
	if got.Path != "/discover/movie" {
		t.Errorf("Path = %q, want /discover/movie", got.Path)
	}
	if diff := cmp.Diff(url.Values{"with_cast": {"287"}, "page": {"2"}}, got.Query); diff != "" {
		t.Errorf("Query mismatch (-want +got):\n%s", diff)
	}

	if _, err := r.ActorDetail(""); !errors.Is(err, ErrMissingIdentifier) {
		t.Errorf("ActorDetail(\"\") error = %v", err)
	}
	if _, err := r.MoviesByActor("", 1); !errors.Is(err, ErrMissingIdentifier) {
		t.Errorf("MoviesByActor(\"\") error = %v", err)
	}
}

func TestAccountList(t *testing.T) {
	r := newTestResolver(t)

	got, err := r.AccountList("123", "favorite/movies", "abc", 1)
	if err != nil {
		t.Fatalf("AccountList() error = %v", err)
	}
	if got.Path != "/account/123/favorite/movies" {
		t.Errorf("Path = %q", got.Path)
	}
	if diff := cmp.Diff(url.Values{"session_id": {"abc"}, "page": {"1"}}, got.Query); diff != "" {
		t.Errorf("Query mismatch (-want +got):\n%s", diff)
	}

	// Session validity is upstream's call.
	got, err = r.AccountList("123", "watchlist/movies", "", 1)
	if err != nil {
		t.Fatalf("AccountList() with empty session error = %v", err)
	}
	if got.Query.Get("session_id") != "" {
		t.Errorf("session_id = %q", got.Query.Get("session_id"))
	}

	if _, err := r.AccountList("", "favorite/movies", "abc", 1); !errors.Is(err, ErrMissingIdentifier) {
		t.Errorf("missing account id error = %v", err)
	}
	if _, err := r.AccountList("123", "", "abc", 1); !errors.Is(err, ErrMissingIdentifier) {
		t.Errorf("missing list name error = %v", err)
	}
}

func TestTarget_URLAndKey(t *testing.T) {
	r := newTestResolver(t)

	tgt := r.Movies(CategoryName("top_rated"), 2)
	if got, want := tgt.URL(), DefaultBaseURL+"/movie/top_rated?api_key=test-key&page=2"; got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
	if got, want := tgt.Key(), "/movie/top_rated?page=2"; got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
	if got := r.Genres().Key(); got != "/genre/movie/list" {
		t.Errorf("Genres Key() = %q", got)
	}

	// URL must not leak the credential into Query.
	if tgt.Query.Has("api_key") {
		t.Error("api_key leaked into Target.Query")
	}
}

func TestIdempotence(t *testing.T) {
	r := newTestResolver(t)

	build := func() []Target {
		detail, _ := r.MovieDetail("550")
		recs, _ := r.Recommendations("550", ListSimilar)
		actor, _ := r.ActorDetail("287")
		byActor, _ := r.MoviesByActor("287", 3)
		account, _ := r.AccountList("123", "favorite/movies", "abc", 1)
		return []Target{
			r.Genres(),
			r.Movies(SearchText("the thing"), 1),
			r.Movies(CategoryName("top_rated"), 2),
			r.Movies(GenreID(28), 1),
			r.Movies(nil, 9),
			detail, recs, actor, byActor, account,
		}
	}

	first, second := build(), build()
	for i := range first {
		if first[i].URL() != second[i].URL() {
			t.Errorf("URL differs between calls: %q vs %q", first[i].URL(), second[i].URL())
		}
		if first[i].Key() != second[i].Key() {
			t.Errorf("Key differs between calls: %q vs %q", first[i].Key(), second[i].Key())
		}
	}
}
