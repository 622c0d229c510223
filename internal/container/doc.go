// Package container holds the module registry built during a bootstrap:
// one Module per unique identity token, each with its provider, injectable
// and controller catalogs, its import edges and its export set.
//
// A Container is constructed fresh per bootstrap and passed by reference to
// the scanner and the instance loader. It never removes modules.
package container
