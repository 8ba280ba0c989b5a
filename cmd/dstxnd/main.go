package main

import (
	"flag"

	log "github.com/sirupsen/logrus"

	"github.com/arohank/dstxncore/dn"
	"github.com/arohank/dstxncore/dstxnconfig"
	"github.com/arohank/dstxncore/logmgr"
	"github.com/arohank/dstxncore/scope"
)

var (
	configPath = flag.String("config", "", "path to the dstxncore YAML config")
	logLevel   = flag.String("loglevel", "", "the level of log")
)

// step is one scripted operation-handler call: begin a transaction, touch
// a dn at a scope, and either commit or abort it. It stands in for the
// LDAP operation handler that would otherwise drive the core.
type step struct {
	opKind   logmgr.OpKind
	dn       string
	scope    scope.SearchScope
	readOnly bool
	abort    bool
}

var demoScript = []step{
	{opKind: logmgr.OpAdd, dn: "ou=people,dc=example,dc=com", scope: scope.Object},
	{opKind: logmgr.OpAdd, dn: "cn=alice,ou=people,dc=example,dc=com", scope: scope.Object},
	{opKind: logmgr.OpSearch, dn: "ou=people,dc=example,dc=com", scope: scope.Subtree, readOnly: true},
	{opKind: logmgr.OpModify, dn: "cn=alice,ou=people,dc=example,dc=com", scope: scope.Object},
	{opKind: logmgr.OpDelete, dn: "cn=bob,ou=people,dc=example,dc=com", scope: scope.Object, abort: true},
}

func main() {
	flag.Parse()

	if *logLevel != "" {
		lvl, err := log.ParseLevel(*logLevel)
		if err != nil {
			log.Fatalf("dstxnd: invalid loglevel %q: %v", *logLevel, err)
		}
		log.SetLevel(lvl)
	}

	conf := dstxnconfig.NewDefaultConfig()
	if *configPath != "" {
		conf.LoadFromFile(*configPath)
	}

	if err := conf.Validate(); err != nil {
		log.Fatalf("dstxnd: invalid config: %v", err)
	}

	lm, err := logmgr.NewLogManager(*conf)
	if err != nil {
		log.Fatalf("dstxnd: unable to start log manager: %v", err)
	}
	defer lm.Shutdown()

	for i, s := range demoScript {
		if err := runStep(lm, s); err != nil {
			log.WithFields(log.Fields{"step": i, "op": s.opKind}).Errorf("dstxnd: step failed: %v", err)
		}
	}
}

func runStep(lm *logmgr.LogManager, s step) error {
	d, err := dn.Parse(s.dn)
	if err != nil {
		return err
	}

	h, err := lm.Begin(s.readOnly)
	if err != nil {
		return err
	}

	if err := lm.LogOperation(h, s.opKind, d, s.scope); err != nil {
		_ = lm.Abort(h)
		return err
	}

	if s.abort {
		return lm.Abort(h)
	}
	return lm.Commit(h)
}
