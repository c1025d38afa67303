// Package streams implements the stream lifecycle:
//   - create -> deploy -> (update)* -> undeploy -> delete
//
// Definitions are persisted through repo.StreamDefinitionStore. Deploy compiles
// the pipeline into per-stage requests, packages them as a release and hands
// the package to the StreamDeployer. Aggregate state is never stored; it is
// derived from the deployer on every query.
//
// Auditing:
//   - create, deploy, update, undeploy and delete each record one STREAM entry
//     with sensitive values masked.
package streams
