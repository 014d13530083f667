// Package kv 定义模块缓存使用的键值后端契约，以及后端驱动的注册表。
//
// 后端作者需要：
//  1. 在 internal/kv/<driver>/ 目录下实现 Backend 接口；
//  2. 在 init() 中通过 MustRegister 注册 Driver 元数据；
//  3. 连接或超时类错误统一包装为 ErrUnavailable，未命中返回 ErrNotFound。
//
// Apply 的原子性由驱动声明（Driver.AtomicBatch），/-/backends 对外展示，缓存层不做补偿。
package kv
