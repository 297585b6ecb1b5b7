// Package cli holds the shared pieces of the crpairs command line:
// kubectl-like contexts with generation defaults, job files and their JSON
// Schema, result output and the on-disk directory layout.
//
// Configuration lives in ~/.crpairs/<app>/config.yaml:
//
//	current_context: ubuntu
//	contexts:
//	  ubuntu:
//	    name: ubuntu
//	    defaults:
//	      context_size: 2
//	      num_negative: 1
//	      sep: __eou__
//	      s3:
//	        endpoint: http://127.0.0.1:9000
//	        path_style: true
//
// A value is taken from the first of command-line flags, the job file
// (-f), the selected context and the built-in defaults that sets it.
package cli
