// Provides filesystem discovery for the host's OpenLDAP installation.
//
// Distributions disagree on where slapd and its schema files live: Debian
// uses /etc/ldap, RedHat and Gentoo use /etc/openldap, manual installs
// typically land under /usr/local. [Discover] probes the known layouts in
// order and returns the first match; when nothing matches it fails with
// [ErrEnvironment] naming every path that was tried.
//
// Working directories for server instances are placed under an
// XDG-appropriate base directory, see [Workdirs].
package paths
