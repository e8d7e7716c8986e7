// Package main provides the entry point for the jobharvest CLI.
//
// jobharvest collects job postings from apec.fr. It queries the site's
// JSON API first and falls back to the server-rendered HTML pages when
// the API fails or returns nothing.
//
// Usage:
//
//	jobharvest harvest --keyword golang --location Lyon
//	jobharvest harvest --start-url 'https://www.apec.fr/candidat/recherche-emploi.html/emploi?motsCles=go'
//	jobharvest history
//
// See --help for all available options.
package main

func main() {
	Execute()
}
