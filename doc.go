// Package voldap runs a disposable OpenLDAP server for test suites.
//
// A [Server] owns one slapd child process bound to a throwaway working
// directory and an ephemeral port, with generated admin credentials. It is
// meant to be started once per test case: the first [Server.Start] locates
// the host's OpenLDAP installation, generates a configuration, launches
// the process and loads the initial data; subsequent calls on a healthy
// instance only clear and reload the data, which is much cheaper than a
// relaunch.
//
// Example usage:
//
//	server, err := voldap.New(voldap.Config{
//	    InitialData: []voldap.Entry{{
//	        DN: "ou=people",
//	        Attributes: map[string][][]byte{
//	            "objectClass": {[]byte("organizationalUnit")},
//	            "ou":          {[]byte("people")},
//	        },
//	    }},
//	})
//	if err != nil {
//	    t.Fatal(err)
//	}
//	if err := server.Start(); err != nil {
//	    t.Fatal(err)
//	}
//	defer server.Stop()
//
//	// Point the code under test at server.URI() with server.RootDN()
//	// and server.RootPW().
//
// Instances register themselves in a process-wide registry backed by a
// signal hook, so an interrupted test run still tears down its slapd
// children and working directories. Call [CleanupAll] from TestMain to get
// the same guarantee on normal exit.
package voldap
