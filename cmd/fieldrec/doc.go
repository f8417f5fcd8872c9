// Command fieldrec records camera and sonar sessions on a field appliance.
//
// "fieldrec record <sensor>" is the driver process a supervising console
// launches with a stdin pipe; closing that pipe stops the recording. The
// remaining subcommands inspect the configuration, the session catalog, and
// sensor reachability.
package main
