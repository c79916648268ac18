// Package comick scrapes comick.io: the paginated chapter list of a comic,
// the page images of a chapter, and the search page.
//
// All three drive a headless browser page obtained from a browser.Launcher,
// seeded with a session from a session.Provider, and parse the rendered DOM
// with goquery.
package comick
